package match

import (
	"context"
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

func record(t *testing.T, id string, vals ...int64) *seq.SequenceRecord {
	t.Helper()
	rec, err := seq.NewRecord(id, seq.FromInt64s(vals...), 64)
	require.NoError(t, err)
	return rec
}

func query(t *testing.T, text string, subseq bool) seq.SequenceQuery {
	t.Helper()
	q, err := seq.ParseQuery(text, seq.ParseOptions{AllowSubsequence: subseq})
	require.NoError(t, err)
	return q
}

func TestCheckRecordPrefix(t *testing.T) {
	m := NewMatcher(store.NewMemoryStore(), 0)
	rec := record(t, "A000045", 0, 1, 1, 2, 3, 5, 8, 13, 21)

	hit := m.CheckRecord(query(t, "0,1,1,2,3,5,8", false), rec)
	require.NotNil(t, hit)
	assert.Equal(t, seq.MatchPrefix, hit.Type)
	assert.Equal(t, 0, hit.Offset)
	assert.Equal(t, 7, hit.Length)
	assert.Equal(t, 7.0, hit.Score)

	// Matcher soundness: the stored prefix equals the query terms.
	assert.True(t, query(t, "0,1,1,2,3,5,8", false).Terms.MatchesAt(rec.Terms, 0))
}

func TestCheckRecordSubsequence(t *testing.T) {
	m := NewMatcher(store.NewMemoryStore(), 0)
	rec := record(t, "A000045", 0, 1, 1, 2, 3, 5, 8, 13, 21)

	q := query(t, "2,3,5,8", true)
	hit := m.CheckRecord(q, rec)
	require.NotNil(t, hit)
	assert.Equal(t, seq.MatchSubsequence, hit.Type)
	assert.Equal(t, 3, hit.Offset)
	assert.Equal(t, 3.0, hit.Score, "subsequence ranks below prefix of equal length")
	assert.True(t, q.Terms.MatchesAt(rec.Terms, hit.Offset))
}

func TestCheckRecordSkipsShortRecords(t *testing.T) {
	m := NewMatcher(store.NewMemoryStore(), 0)
	rec := record(t, "A000001", 1, 2, 3)
	assert.Nil(t, m.CheckRecord(query(t, "1,2,3,4", false), rec))
}

func TestCheckRecordNegativesAndZero(t *testing.T) {
	m := NewMatcher(store.NewMemoryStore(), 0)
	rec := record(t, "A000002", -1, 0, -2, 0, -3)
	hit := m.CheckRecord(query(t, "-1,0,-2", false), rec)
	require.NotNil(t, hit)
	assert.Equal(t, seq.MatchPrefix, hit.Type)
}

func TestCheckRecordWildcards(t *testing.T) {
	m := NewMatcher(store.NewMemoryStore(), 0)
	rec := record(t, "A000003", 9, 1, 7, 3, 4)

	hit := m.CheckRecord(query(t, "9,?,7", false), rec)
	require.NotNil(t, hit)
	assert.Equal(t, seq.MatchPrefix, hit.Type)

	sub := m.CheckRecord(query(t, "1,?,3", true), rec)
	require.NotNil(t, sub)
	assert.Equal(t, 1, sub.Offset)
}

func TestFindOffsetsReportsAll(t *testing.T) {
	text := seq.FromInt64s(1, 2, 1, 2, 1, 2, 1)
	pat := seq.Pattern(seq.FromInt64s(1, 2, 1))
	offsets := findOffsets(pat, text, 5)
	assert.Equal(t, []int{0, 2, 4}, offsets)
}

func TestRunStreamsFilteredCandidates(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(record(t, "A000045", 0, 1, 1, 2, 3, 5, 8, 13, 21, 34))
	st.Add(record(t, "A000032", 2, 1, 3, 4, 7, 11, 18, 29))
	st.Add(record(t, "A000027", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10))

	m := NewMatcher(st, 0)
	matches, _, err := m.Run(context.Background(), query(t, "0,1,1,2,3,5,8", false), FilterPrefix, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A000045", matches[0].ID)
}

func TestRunDeterministicOrder(t *testing.T) {
	st := store.NewMemoryStore()
	st.Add(record(t, "A000002", 1, 2, 3, 4, 5))
	st.Add(record(t, "A000001", 1, 2, 3, 4, 6))

	m := NewMatcher(st, 0)
	matches, _, err := m.Run(context.Background(), query(t, "1,2,3", false), FilterPrefix, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Equal scores tie-break by id ascending.
	assert.Equal(t, "A000001", matches[0].ID)
	assert.Equal(t, "A000002", matches[1].ID)
}

func TestDerivePredicatesPrefixHash(t *testing.T) {
	q := query(t, "1,2,3,4,5,6", false)
	preds := DerivePredicates(q, FilterPrefix)
	require.NotNil(t, preds.PrefixHash)
	assert.Equal(t, seq.PrefixHash(seq.FromInt64s(1, 2, 3, 4, 5)), *preds.PrefixHash)
	assert.Equal(t, 6, preds.MinLength)

	// Short queries cannot use the prefix hash.
	short := DerivePredicates(query(t, "1,2,3", false), FilterPrefix)
	assert.Nil(t, short.PrefixHash)

	// Subsequence mode never uses it.
	sub := DerivePredicates(q, FilterSubsequence)
	assert.Nil(t, sub.PrefixHash)
}

func TestDerivePredicatesWildcardsRelax(t *testing.T) {
	q := query(t, "1,?,3,4,5,6", false)
	preds := DerivePredicates(q, FilterPrefix)
	assert.Nil(t, preds.PrefixHash)
	assert.Empty(t, preds.SignPatterns)
	assert.Nil(t, preds.GCDDivides)
	assert.Equal(t, 6, preds.MinLength)
}

func TestDerivePredicatesCombinationMode(t *testing.T) {
	preds := DerivePredicates(query(t, "1,-2,3,-4", false), FilterCombination)
	assert.Empty(t, preds.SignPatterns)
	assert.Nil(t, preds.NonzeroMin)
	assert.Nil(t, preds.PrefixHash)
	assert.Equal(t, 3, preds.MinLength)
}

func TestDerivePredicatesGCDRule(t *testing.T) {
	preds := DerivePredicates(query(t, "6,12,18", false), FilterPrefix)
	require.NotNil(t, preds.GCDDivides)
	assert.Equal(t, int64(6), preds.GCDDivides.Int64())

	// A stored record with coarser gcd 2 divides 6 and must pass.
	rec := record(t, "A000005", 2, 4, 6, 8)
	assert.True(t, preds.Matches(rec))

	// gcd 4 does not divide 6 and must be filtered.
	rec4 := record(t, "A000006", 4, 8, 12, 16)
	assert.False(t, preds.Matches(rec4))
}

// TestPropertyKMPAgreesWithNaive cross-checks the KMP offsets against a
// naive sliding-window scan on random inputs.
func TestPropertyKMPAgreesWithNaive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("first KMP offset equals naive first offset", prop.ForAll(
		func(textVals, patVals []int64) bool {
			if len(patVals) == 0 || len(patVals) > len(textVals) {
				return true
			}
			text := seq.FromInt64s(textVals...)
			pat := seq.Pattern(seq.FromInt64s(patVals...))

			got := findOffsets(pat, text, 1)
			want := -1
			for i := 0; i+len(pat) <= len(text); i++ {
				if pat.MatchesAt(text, i) {
					want = i
					break
				}
			}
			if want == -1 {
				return len(got) == 0
			}
			return len(got) == 1 && got[0] == want
		},
		gen.SliceOf(gen.Int64Range(0, 2)),
		gen.SliceOf(gen.Int64Range(0, 2)),
	))

	properties.TestingRun(t)
}

func TestMatcherCompletenessOverCandidateSet(t *testing.T) {
	// For every record in the filtered stream, a match is returned iff the
	// naive check succeeds.
	st := store.NewMemoryStore()
	corpus := []*seq.SequenceRecord{
		record(t, "A000001", 1, 2, 3, 4, 5, 6),
		record(t, "A000002", 1, 2, 4, 8, 16, 32),
		record(t, "A000003", 2, 4, 6, 8, 10, 12),
		record(t, "A000004", 0, 0, 0, 0, 0, 0),
		record(t, "A000005", 6, 5, 4, 3, 2, 1),
	}
	for _, rec := range corpus {
		st.Add(rec)
	}

	q := query(t, "1,2,3", false)
	m := NewMatcher(st, 0)
	matches, _, err := m.Run(context.Background(), q, FilterPrefix, 0)
	require.NoError(t, err)

	matched := map[string]bool{}
	for _, hit := range matches {
		matched[hit.ID] = true
	}
	preds := DerivePredicates(q, FilterPrefix)
	for _, rec := range corpus {
		if !preds.Matches(rec) {
			assert.False(t, matched[rec.ID], "%s outside candidate set", rec.ID)
			continue
		}
		want := q.Terms.MatchesAt(rec.Terms, 0)
		assert.Equal(t, want, matched[rec.ID], rec.ID)
	}
}

func TestBigTermComparison(t *testing.T) {
	huge := new(big.Int)
	huge.SetString("987654321098765432109876543210", 10)
	rec := &seq.SequenceRecord{
		ID:     "A999999",
		Terms:  seq.Terms{big.NewInt(1), huge, big.NewInt(2), big.NewInt(3)},
		Length: 4,
	}
	rec.Invariants = seq.DeriveInvariants(rec.Terms)

	q, err := seq.ParseQuery("1,987654321098765432109876543210,2", seq.ParseOptions{})
	require.NoError(t, err)
	m := NewMatcher(store.NewMemoryStore(), 0)
	hit := m.CheckRecord(q, rec)
	require.NotNil(t, hit)
	assert.Equal(t, seq.MatchPrefix, hit.Type)
}
