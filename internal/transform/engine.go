package transform

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rahidz/oeis-offline-matcher/internal/config"
	"github.com/rahidz/oeis-offline-matcher/internal/match"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// nearZeroVariance is the floor under which a query itself counts as flat,
// exempting its transforms from the degenerate-output filter.
const nearZeroVariance = 1e-9

// Candidate is one deduplicated transformed query ready for matching.
type Candidate struct {
	Chain      []Op
	Terms      seq.Terms
	Complexity int
}

// EnumerateResult carries the chains plus budget diagnostics.
type EnumerateResult struct {
	Candidates  []Candidate
	ChainsTried int
	Truncated   bool
	TruncatedBy string
}

// Engine enumerates operator chains and matches transformed queries.
type Engine struct {
	cfg     config.TransformConfig
	ops     []Op
	matcher *match.Matcher
}

// NewEngine builds an engine over the configured operator table.
func NewEngine(cfg config.TransformConfig, matcher *match.Matcher) *Engine {
	return &Engine{cfg: cfg, ops: Catalog(cfg), matcher: matcher}
}

// Enumerate walks all operator chains up to the configured depth, applies
// them to the query, and dedupes identical outputs keeping the cheapest
// chain. Budget caps stop enumeration early; partial results are returned.
func (e *Engine) Enumerate(ctx context.Context, query seq.Terms, minLen int) EnumerateResult {
	deadline := time.Now().Add(e.cfg.MaxTime)
	queryFlat := len(query) < 2 || query.Variance() < nearZeroVariance ||
		math.IsNaN(query.Variance())
	queryAllZero := query.AllZero()

	best := make(map[string]*Candidate)
	res := EnumerateResult{}

	var walk func(chain []Op, terms seq.Terms, depth int) bool
	walk = func(chain []Op, terms seq.Terms, depth int) bool {
		for _, op := range e.ops {
			if time.Now().After(deadline) {
				res.Truncated = true
				res.TruncatedBy = "max_time"
				return false
			}
			if err := ctx.Err(); err != nil {
				res.Truncated = true
				res.TruncatedBy = "deadline"
				return false
			}
			if e.cfg.MaxChains > 0 && res.ChainsTried >= e.cfg.MaxChains {
				res.Truncated = true
				res.TruncatedBy = "max_chains"
				return false
			}
			res.ChainsTried++

			out := op.Apply(terms)
			next := append(append([]Op(nil), chain...), op)
			if e.admit(best, next, out, minLen, queryFlat, queryAllZero) && depth+1 < e.cfg.MaxDepth {
				if !walk(next, out, depth+1) {
					return false
				}
			}
		}
		return true
	}
	walk(nil, query, 0)

	res.Candidates = make([]Candidate, 0, len(best))
	for _, c := range best {
		res.Candidates = append(res.Candidates, *c)
	}
	sort.Slice(res.Candidates, func(i, j int) bool {
		if res.Candidates[i].Complexity != res.Candidates[j].Complexity {
			return res.Candidates[i].Complexity < res.Candidates[j].Complexity
		}
		return res.Candidates[i].Terms.String() < res.Candidates[j].Terms.String()
	})
	return res
}

// admit records a chain output if usable, returning whether the output is
// worth extending with further operators.
func (e *Engine) admit(best map[string]*Candidate, chain []Op, out seq.Terms, minLen int, queryFlat, queryAllZero bool) bool {
	if out == nil {
		return false
	}
	if len(out) < minLen {
		return false
	}
	if out.AllZero() && !queryAllZero {
		return false
	}
	if !queryFlat {
		if v := out.Variance(); math.IsNaN(v) || v < e.cfg.MinVariance {
			return false
		}
	}
	key := out.String()
	comp := ChainComplexity(chain)
	if prev, ok := best[key]; !ok || comp < prev.Complexity {
		best[key] = &Candidate{Chain: chain, Terms: out, Complexity: comp}
	}
	return true
}

// SearchResult carries transform matches plus diagnostics.
type SearchResult struct {
	Matches     []seq.Match
	ChainsTried int
	Candidates  int
	Truncated   bool
	TruncatedBy string
}

// Search enumerates chains, matches each transformed query against the
// store, and tags hits with their chain. Matches score
// length/(1+complexity) and are merged deterministically.
func (e *Engine) Search(ctx context.Context, query seq.SequenceQuery) (*SearchResult, error) {
	if !query.Terms.Concrete() {
		// Wildcard values are unknown, so no operator output is defined.
		return &SearchResult{}, nil
	}
	enum := e.Enumerate(ctx, query.Terms.Terms(), query.MinMatchLength)
	out := &SearchResult{
		ChainsTried: enum.ChainsTried,
		Candidates:  len(enum.Candidates),
		Truncated:   enum.Truncated,
		TruncatedBy: enum.TruncatedBy,
	}

	seen := make(map[matchKey]bool)
	for _, cand := range enum.Candidates {
		if err := ctx.Err(); err != nil {
			out.Truncated = true
			out.TruncatedBy = "deadline"
			break
		}
		tq := seq.SequenceQuery{
			Terms:            seq.Pattern(cand.Terms),
			MinMatchLength:   query.MinMatchLength,
			AllowSubsequence: query.AllowSubsequence,
		}
		mode := match.FilterPrefix
		if query.AllowSubsequence {
			mode = match.FilterSubsequence
		}
		matches, _, err := e.matcher.Run(ctx, tq, mode, e.cfg.Limit)
		if err != nil && err != context.DeadlineExceeded && err != context.Canceled {
			return out, err
		}
		for _, m := range matches {
			key := matchKey{m.ID, m.Type, m.Offset}
			if seen[key] {
				continue
			}
			seen[key] = true
			m.TransformChain = Steps(cand.Chain)
			m.Score = float64(m.Length) / float64(1+cand.Complexity)
			out.Matches = append(out.Matches, m)
		}
		if e.cfg.Limit > 0 && len(out.Matches) >= e.cfg.Limit {
			break
		}
	}

	match.SortMatches(out.Matches)
	if e.cfg.Limit > 0 && len(out.Matches) > e.cfg.Limit {
		out.Matches = out.Matches[:e.cfg.Limit]
	}
	return out, nil
}

type matchKey struct {
	id     string
	kind   seq.MatchType
	offset int
}
