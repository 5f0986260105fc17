package combine

import (
	"context"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rahidz/oeis-offline-matcher/internal/config"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// timeCheckStride bounds how often the wall clock is consulted inside the
// coefficient loops.
const timeCheckStride = 512

// componentTransform is one per-component pre-shift transform.
type componentTransform struct {
	name   string
	weight int
	apply  func(seq.Terms) seq.Terms
}

var transformCatalog = []componentTransform{
	{name: "id", weight: 0, apply: func(t seq.Terms) seq.Terms { return t }},
	{name: "diff", weight: 1, apply: func(t seq.Terms) seq.Terms { return t.Diffs() }},
	{name: "partial_sum", weight: 1, apply: partialSum},
}

func partialSum(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	acc := new(big.Int)
	for i, v := range t {
		acc = new(big.Int).Add(acc, v)
		out[i] = acc
	}
	return out
}

func resolveTransforms(names []string) []componentTransform {
	if len(names) == 0 {
		return transformCatalog[:1]
	}
	var out []componentTransform
	for _, n := range names {
		for _, t := range transformCatalog {
			if t.name == n {
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		return transformCatalog[:1]
	}
	return out
}

// Result carries the verified combinations plus search diagnostics.
type Result struct {
	Matches     []seq.CombinationMatch
	Checks      int64
	Truncated   bool
	TruncatedBy string
}

// Solver searches for integer or rational linear combinations of bucket
// sequences that reproduce the query exactly.
type Solver struct {
	cfg config.CombinationConfig
}

// NewSolver creates a solver.
func NewSolver(cfg config.CombinationConfig) *Solver {
	return &Solver{cfg: cfg}
}

// SearchPairs runs the two-component search over the bucket.
func (s *Solver) SearchPairs(ctx context.Context, query seq.SequenceQuery, bucket *Bucket) *Result {
	return s.search(ctx, query, bucket, 2, s.cfg.MaxChecks, s.cfg.MaxTime, s.cfg.Limit)
}

// SearchTriples runs the three-component search with its own caps.
func (s *Solver) SearchTriples(ctx context.Context, query seq.SequenceQuery, bucket *Bucket, caps config.TripleConfig) *Result {
	return s.search(ctx, query, bucket, 3, caps.MaxChecks, caps.MaxTime, caps.Limit)
}

// run-state shared across the recursive component loops of one search.
type searchRun struct {
	solver    *Solver
	query     seq.Terms
	minLen    int
	deadline  time.Time
	maxChecks int64
	res       *Result
	seen      map[string]bool

	coeffsFirst []int64
	coeffsRest  []int64
	shifts      []int
	transforms  []componentTransform

	// transformed[t] is the t-th transform applied to each bucket record.
	records     []*seq.SequenceRecord
	transformed [][]seq.Terms
}

func (s *Solver) search(ctx context.Context, query seq.SequenceQuery, bucket *Bucket, m int, maxChecks int64, maxTime time.Duration, limit int) *Result {
	res := &Result{}
	if !query.Terms.Concrete() || bucket.Size() == 0 {
		return res
	}
	qTerms := query.Terms.Terms()
	if len(qTerms) < query.MinMatchLength {
		return res
	}

	transforms := resolveTransforms(s.cfg.ComponentTransforms)
	run := &searchRun{
		solver:      s,
		query:       qTerms,
		minLen:      query.MinMatchLength,
		deadline:    time.Now().Add(maxTime),
		maxChecks:   maxChecks,
		res:         res,
		seen:        make(map[string]bool),
		coeffsFirst: nonzero(s.cfg.Coeffs),
		coeffsRest:  withZero(s.cfg.Coeffs),
		shifts:      shiftRange(s.cfg.MaxShiftBack, s.cfg.MaxShift),
		transforms:  transforms,
	}
	if len(run.coeffsFirst) == 0 {
		return res
	}

	// The bucket is re-sorted by id so enumeration order is reproducible
	// regardless of how candidates were ranked.
	entries := append([]Entry(nil), bucket.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Record.ID < entries[j].Record.ID })
	run.records = make([]*seq.SequenceRecord, len(entries))
	run.transformed = make([][]seq.Terms, len(entries))
	for i, e := range entries {
		run.records[i] = e.Record
		run.transformed[i] = make([]seq.Terms, len(transforms))
		for t, ct := range transforms {
			run.transformed[i][t] = ct.apply(e.Record.Terms)
		}
	}

	run.enumerate(ctx, m)

	sortCombinations(res.Matches)
	if limit > 0 && len(res.Matches) > limit {
		res.Matches = res.Matches[:limit]
	}
	return res
}

// enumerate walks unordered m-tuples of bucket records with per-component
// transform and shift choices, then solves for coefficients.
func (r *searchRun) enumerate(ctx context.Context, m int) {
	idx := make([]int, m)
	tsel := make([]int, m)
	ssel := make([]int, m)

	var pickRecords func(pos, start int) bool
	var pickAlignment func(pos int) bool

	pickAlignment = func(pos int) bool {
		if pos == m {
			return r.solveSelection(idx, tsel, ssel)
		}
		for t := range r.transforms {
			tsel[pos] = t
			for si := range r.shifts {
				ssel[pos] = si
				if r.capHit(ctx) {
					return false
				}
				if !pickAlignment(pos + 1) {
					return false
				}
			}
		}
		return true
	}

	// Tuples are drawn with replacement: the same entry may appear at two
	// different shifts (Lucas = Fib(n+2) + Fib(n)).
	pickRecords = func(pos, start int) bool {
		if pos == m {
			return pickAlignment(0)
		}
		for i := start; i < len(r.records); i++ {
			idx[pos] = i
			if !pickRecords(pos+1, i) {
				return false
			}
		}
		return true
	}

	pickRecords(0, 0)
}

// capHit checks the deadline and context between (tuple, shift) iterations.
func (r *searchRun) capHit(ctx context.Context) bool {
	if time.Now().After(r.deadline) {
		r.res.Truncated = true
		r.res.TruncatedBy = "max_time"
		return true
	}
	if ctx.Err() != nil {
		r.res.Truncated = true
		r.res.TruncatedBy = "deadline"
		return true
	}
	return false
}

// solveSelection aligns the chosen components against the query and runs the
// integer and rational coefficient searches. Returns false when a hard cap
// fired and the whole search must stop.
func (r *searchRun) solveSelection(idx, tsel, ssel []int) bool {
	m := len(idx)
	qlen := len(r.query)

	// Overlap window: positions n0..kEnd-1 of the query are verified, where
	// every component value T(S)[n+s] is defined.
	n0 := 0
	kEnd := qlen
	for c := 0; c < m; c++ {
		s := r.shifts[ssel[c]]
		if -s > n0 {
			n0 = -s
		}
		if avail := len(r.transformed[idx[c]][tsel[c]]) - s; avail < kEnd {
			kEnd = avail
		}
	}
	k := kEnd - n0
	if k < r.minLen {
		return true
	}

	cols := make([][]*big.Int, m)
	for c := 0; c < m; c++ {
		s := r.shifts[ssel[c]]
		terms := r.transformed[idx[c]][tsel[c]]
		cols[c] = terms[n0+s : kEnd+s]
	}
	target := []*big.Int(r.query[n0:kEnd])

	if !r.integerSearch(idx, tsel, ssel, cols, target, k) {
		return false
	}
	if r.solver.cfg.Rational {
		if !r.rationalSearch(idx, tsel, ssel, cols, target, k) {
			return false
		}
	}
	return true
}

// integerSearch enumerates the coefficient grid with early reject on the
// first mismatching position.
func (r *searchRun) integerSearch(idx, tsel, ssel []int, cols [][]*big.Int, target []*big.Int, k int) bool {
	m := len(idx)
	coeffs := make([]int64, m)
	acc := new(big.Int)
	term := new(big.Int)

	var loop func(pos int) bool
	loop = func(pos int) bool {
		set := r.coeffsRest
		if pos == 0 {
			set = r.coeffsFirst
		}
		if pos == m {
			r.res.Checks++
			if r.maxChecks > 0 && r.res.Checks > r.maxChecks {
				r.res.Truncated = true
				r.res.TruncatedBy = "max_checks"
				return false
			}
			if r.res.Checks%timeCheckStride == 0 && time.Now().After(r.deadline) {
				r.res.Truncated = true
				r.res.TruncatedBy = "max_time"
				return false
			}
			for n := 0; n < k; n++ {
				acc.SetInt64(0)
				for c := 0; c < m; c++ {
					term.SetInt64(coeffs[c])
					term.Mul(term, cols[c][n])
					acc.Add(acc, term)
				}
				if acc.Cmp(target[n]) != 0 {
					return true
				}
			}
			rats := make([]*big.Rat, m)
			for c := 0; c < m; c++ {
				rats[c] = new(big.Rat).SetInt64(coeffs[c])
			}
			r.record(idx, tsel, ssel, rats, k)
			return true
		}
		for _, a := range set {
			coeffs[pos] = a
			if !loop(pos + 1) {
				return false
			}
		}
		return true
	}
	return loop(0)
}

// rationalSearch solves the aligned system exactly and keeps solutions whose
// reduced fractions respect the numerator and denominator caps.
func (r *searchRun) rationalSearch(idx, tsel, ssel []int, cols [][]*big.Int, target []*big.Int, k int) bool {
	r.res.Checks++
	if r.maxChecks > 0 && r.res.Checks > r.maxChecks {
		r.res.Truncated = true
		r.res.TruncatedBy = "max_checks"
		return false
	}
	sol, ok := solveRational(cols, target)
	if !ok {
		return true
	}
	for _, c := range sol {
		if c.Sign() == 0 {
			return true
		}
	}
	if !withinCaps(sol, r.solver.cfg.MaxCoeffNum, r.solver.cfg.MaxDenom) {
		return true
	}
	if !verifyRational(cols, sol, target) {
		return true
	}
	r.record(idx, tsel, ssel, sol, k)
	return true
}

// record registers a verified combination, deduplicating exact repeats.
func (r *searchRun) record(idx, tsel, ssel []int, coeffs []*big.Rat, k int) {
	m := len(idx)
	ids := make([]string, m)
	names := make([]string, m)
	tNames := make([]string, m)
	shifts := make([]int, m)
	var keyParts []string
	for c := 0; c < m; c++ {
		rec := r.records[idx[c]]
		ids[c] = rec.ID
		names[c] = rec.Name
		tNames[c] = r.transforms[tsel[c]].name
		shifts[c] = r.shifts[ssel[c]]
		keyParts = append(keyParts, rec.ID, tNames[c], strconv.Itoa(shifts[c]), coeffs[c].RatString())
	}
	key := strings.Join(keyParts, "|")
	if r.seen[key] {
		return
	}
	r.seen[key] = true

	complexity := m
	for c := 0; c < m; c++ {
		complexity += coeffCost(coeffs[c])
		complexity += absInt(shifts[c])
		complexity += r.transforms[tsel[c]].weight
	}
	score := float64(k) / float64(1+complexity)
	score *= 1 + 0.1*popularityBonus(r.records, idx)

	r.res.Matches = append(r.res.Matches, seq.CombinationMatch{
		ComponentIDs:        ids,
		ComponentNames:      names,
		Coefficients:        coeffs,
		Shifts:              shifts,
		ComponentTransforms: tNames,
		Length:              k,
		Complexity:          complexity,
		Score:               score,
	})
}

// coeffCost charges |numerator| plus denominator-1, so integers cost their
// absolute value.
func coeffCost(c *big.Rat) int {
	num := new(big.Int).Abs(c.Num())
	cost := int(num.Int64())
	cost += int(c.Denom().Int64()) - 1
	return cost
}

// popularityBonus rewards combinations built from well-known entries.
var keywordWeights = map[string]float64{
	"core": 1.0, "nice": 0.6, "easy": 0.3, "hard": 0.2, "nonn": 0.1,
}

func popularityBonus(records []*seq.SequenceRecord, idx []int) float64 {
	bonus := 0.0
	for _, i := range idx {
		for _, kw := range records[i].Keywords {
			bonus += keywordWeights[kw]
		}
	}
	return bonus
}

// sortCombinations orders by ascending complexity, descending length, then
// lexicographic component ids, shifts, and coefficients for determinism.
func sortCombinations(matches []seq.CombinationMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Complexity != b.Complexity {
			return a.Complexity < b.Complexity
		}
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		if c := compareStrings(a.ComponentIDs, b.ComponentIDs); c != 0 {
			return c < 0
		}
		if c := compareInts(a.Shifts, b.Shifts); c != 0 {
			return c < 0
		}
		return compareStrings(a.CoefficientStrings(), b.CoefficientStrings()) < 0
	})
}

func compareStrings(a, b []string) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}

func compareInts(a, b []int) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}

func nonzero(vals []int64) []int64 {
	var out []int64
	for _, v := range vals {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}

func withZero(vals []int64) []int64 {
	for _, v := range vals {
		if v == 0 {
			return vals
		}
	}
	out := append([]int64(nil), vals...)
	return append(out, 0)
}

func shiftRange(back, fwd int) []int {
	if back < 0 {
		back = 0
	}
	if fwd < 0 {
		fwd = 0
	}
	out := make([]int, 0, back+fwd+1)
	for s := -back; s <= fwd; s++ {
		out = append(out, s)
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
