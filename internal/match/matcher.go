package match

import (
	"context"
	"sort"

	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// maxExtraOffsets caps the additional subsequence offsets reported per
// record beyond the smallest one.
const maxExtraOffsets = 4

// Matcher runs prefix and subsequence checks against candidate streams.
type Matcher struct {
	store      store.SequenceStore
	snippetLen int
}

// NewMatcher creates a matcher over the given store. snippetLen > 0 attaches
// a stored-sequence window to each match.
func NewMatcher(st store.SequenceStore, snippetLen int) *Matcher {
	return &Matcher{store: st, snippetLen: snippetLen}
}

// CheckRecord matches the query against one record. Returns nil when the
// record does not match.
func (m *Matcher) CheckRecord(query seq.SequenceQuery, rec *seq.SequenceRecord) *seq.Match {
	qlen := query.Len()
	if rec.Length < qlen || qlen < query.MinMatchLength {
		return nil
	}

	if query.Terms.MatchesAt(rec.Terms, 0) {
		return m.newMatch(rec, seq.MatchPrefix, 0, qlen, nil)
	}
	if !query.AllowSubsequence {
		return nil
	}

	offsets := findOffsets(query.Terms, rec.Terms, 1+maxExtraOffsets)
	if len(offsets) == 0 {
		return nil
	}
	return m.newMatch(rec, seq.MatchSubsequence, offsets[0], qlen, offsets[1:])
}

// Run streams the filtered candidate set and collects matches, sorted by
// score descending then id ascending. limit <= 0 means unlimited.
func (m *Matcher) Run(ctx context.Context, query seq.SequenceQuery, mode FilterMode, limit int) ([]seq.Match, int, error) {
	preds := DerivePredicates(query, mode)

	var (
		matches  []seq.Match
		streamed int
	)
	scan := func(rec *seq.SequenceRecord) error {
		streamed++
		if hit := m.CheckRecord(query, rec); hit != nil {
			matches = append(matches, *hit)
		}
		return nil
	}

	var err error
	if preds.PrefixHash != nil {
		err = m.store.LookupByPrefixHash(ctx, *preds.PrefixHash, scan)
	} else {
		err = m.store.Scan(ctx, preds, scan)
	}
	if err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		return nil, streamed, err
	}

	SortMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, streamed, err
}

// SortMatches orders matches by score descending, id ascending, then chain
// description descending, the deterministic merge key shared by all stages.
func SortMatches(matches []seq.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].ID != matches[j].ID {
			return matches[i].ID < matches[j].ID
		}
		return seq.ChainString(matches[i].TransformChain) > seq.ChainString(matches[j].TransformChain)
	})
}

func (m *Matcher) newMatch(rec *seq.SequenceRecord, kind seq.MatchType, offset, length int, extra []int) *seq.Match {
	score := float64(length)
	if kind == seq.MatchSubsequence {
		score = float64(length) - 1
	}
	hit := &seq.Match{
		ID:           rec.ID,
		Name:         rec.Name,
		Type:         kind,
		Offset:       offset,
		Length:       length,
		Score:        score,
		ExtraOffsets: extra,
	}
	if m.snippetLen > 0 {
		hit.Snippet = rec.Snippet(m.snippetLen)
	}
	return hit
}

// findOffsets returns up to max match positions of pattern inside text in
// ascending order. Concrete patterns use Knuth-Morris-Pratt; patterns with
// wildcards fall back to a sliding-window scan, since the KMP failure
// function is not well defined across multiple wildcard positions.
func findOffsets(pattern seq.Pattern, text seq.Terms, max int) []int {
	plen, tlen := len(pattern), len(text)
	if plen == 0 || plen > tlen {
		return nil
	}
	if !pattern.Concrete() {
		var offsets []int
		for i := 0; i+plen <= tlen && len(offsets) < max; i++ {
			if pattern.MatchesAt(text, i) {
				offsets = append(offsets, i)
			}
		}
		return offsets
	}

	// Failure function over the concrete pattern.
	lps := make([]int, plen)
	k := 0
	for i := 1; i < plen; i++ {
		for k > 0 && pattern[k].Cmp(pattern[i]) != 0 {
			k = lps[k-1]
		}
		if pattern[k].Cmp(pattern[i]) == 0 {
			k++
			lps[i] = k
		}
	}

	var offsets []int
	q := 0
	for i := 0; i < tlen; i++ {
		for q > 0 && pattern[q].Cmp(text[i]) != 0 {
			q = lps[q-1]
		}
		if pattern[q].Cmp(text[i]) == 0 {
			q++
		}
		if q == plen {
			offsets = append(offsets, i-plen+1)
			if len(offsets) >= max {
				return offsets
			}
			q = lps[q-1]
		}
	}
	return offsets
}
