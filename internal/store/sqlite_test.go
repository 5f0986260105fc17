package store

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

func buildTestIndex(t *testing.T, records ...*seq.SequenceRecord) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	w, err := NewWriter(ctx, dbPath, 2)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, w.Write(ctx, rec))
	}
	require.NoError(t, w.Close(ctx))

	st, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func rec(t *testing.T, id string, vals ...int64) *seq.SequenceRecord {
	t.Helper()
	r, err := seq.NewRecord(id, seq.FromInt64s(vals...), 64)
	require.NoError(t, err)
	return r
}

func TestWriteAndGet(t *testing.T) {
	fib := rec(t, "A000045", 0, 1, 1, 2, 3, 5, 8, 13, 21)
	fib.Name = "Fibonacci numbers"
	fib.Keywords = []string{"core", "nonn", "nice"}
	st := buildTestIndex(t, fib, rec(t, "A000027", 1, 2, 3, 4, 5))

	got, err := st.Get(context.Background(), "A000045")
	require.NoError(t, err)
	assert.Equal(t, "A000045", got.ID)
	assert.Equal(t, "Fibonacci numbers", got.Name)
	assert.Equal(t, []string{"core", "nonn", "nice"}, got.Keywords)
	assert.True(t, fib.Terms.Equal(got.Terms))
	assert.Equal(t, 9, got.Length)

	_, err = st.Get(context.Background(), "A999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoredInvariantsMatchRecomputation(t *testing.T) {
	records := []*seq.SequenceRecord{
		rec(t, "A000045", 0, 1, 1, 2, 3, 5, 8, 13, 21),
		rec(t, "A000027", 1, 2, 3, 4, 5, 6, 7),
		rec(t, "A033999", 1, -1, 1, -1, 1, -1),
		rec(t, "A000004", 0, 0, 0, 0, 0),
	}
	st := buildTestIndex(t, records...)

	err := st.Scan(context.Background(), PredicateSet{}, func(got *seq.SequenceRecord) error {
		want := seq.DeriveInvariants(got.Terms)
		assert.Equal(t, want.PrefixHash, got.Invariants.PrefixHash, got.ID)
		assert.Equal(t, want.SignPattern, got.Invariants.SignPattern, got.ID)
		assert.Equal(t, want.FirstDiffSign, got.Invariants.FirstDiffSign, got.ID)
		assert.Equal(t, want.GCDVal, got.Invariants.GCDVal, got.ID)
		assert.Equal(t, want.NonzeroCount, got.Invariants.NonzeroCount, got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestLookupByPrefixHash(t *testing.T) {
	st := buildTestIndex(t,
		rec(t, "A000045", 0, 1, 1, 2, 3, 5, 8),
		rec(t, "A000027", 1, 2, 3, 4, 5, 6, 7),
	)

	h := seq.PrefixHash(seq.FromInt64s(0, 1, 1, 2, 3))
	var ids []string
	err := st.LookupByPrefixHash(context.Background(), h, func(r *seq.SequenceRecord) error {
		ids = append(ids, r.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A000045"}, ids)
}

func TestScanPushdownAgreesWithReference(t *testing.T) {
	records := []*seq.SequenceRecord{
		rec(t, "A000012", 1, 1, 1, 1, 1, 1),
		rec(t, "A000027", 1, 2, 3, 4, 5, 6),
		rec(t, "A000079", 1, 2, 4, 8, 16, 32),
		rec(t, "A005843", 2, 4, 6, 8, 10, 12),
		rec(t, "A033999", 1, -1, 1, -1, 1, -1),
		rec(t, "A001489", 0, -1, -2, -3, -4, -5),
		rec(t, "A000004", 0, 0, 0, 0, 0, 0),
	}
	st := buildTestIndex(t, records...)
	mem := NewMemoryStore()
	for _, r := range records {
		mem.Add(r)
	}

	nzMin := 3
	predSets := []PredicateSet{
		{},
		{SignPatterns: []seq.SignPattern{seq.SignNonnegative}},
		{FirstDiffSigns: []seq.DiffSignPattern{seq.DiffPos, seq.DiffNonneg}},
		{NonzeroMin: &nzMin, MinLength: 6},
		{GCDDivides: big.NewInt(6)},
		{SignPatterns: []seq.SignPattern{seq.SignNonnegative, seq.SignMixed}, GCDDivides: big.NewInt(2)},
	}

	for i, preds := range predSets {
		var fromSQL, fromMem []string
		err := st.Scan(context.Background(), preds, func(r *seq.SequenceRecord) error {
			fromSQL = append(fromSQL, r.ID)
			return nil
		})
		require.NoError(t, err)
		err = mem.Scan(context.Background(), preds, func(r *seq.SequenceRecord) error {
			fromMem = append(fromMem, r.ID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, fromMem, fromSQL, "predicate set %d", i)
	}
}

func TestScanStableOrder(t *testing.T) {
	st := buildTestIndex(t,
		rec(t, "A000003", 1, 2, 3, 4),
		rec(t, "A000001", 1, 2, 3, 4),
		rec(t, "A000002", 1, 2, 3, 4),
	)
	var ids []string
	err := st.Scan(context.Background(), PredicateSet{}, func(r *seq.SequenceRecord) error {
		ids = append(ids, r.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A000001", "A000002", "A000003"}, ids)
}

func TestScanEarlyStop(t *testing.T) {
	st := buildTestIndex(t,
		rec(t, "A000001", 1, 2, 3),
		rec(t, "A000002", 1, 2, 3),
	)
	count := 0
	err := st.Scan(context.Background(), PredicateSet{}, func(r *seq.SequenceRecord) error {
		count++
		return ErrStopScan
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScanHonoursCancellation(t *testing.T) {
	st := buildTestIndex(t,
		rec(t, "A000001", 1, 2, 3),
		rec(t, "A000002", 1, 2, 3),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := st.Scan(ctx, PredicateSet{}, func(r *seq.SequenceRecord) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStats(t *testing.T) {
	st := buildTestIndex(t,
		rec(t, "A000001", 1, 2, 3),
		rec(t, "A000002", 1, 2, 3, 4, 5, 6),
	)
	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, 3, stats.MinLength)
	assert.Equal(t, 6, stats.MaxLength)
}

func TestOpenMissingIndex(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestTermsCodecRoundTrip(t *testing.T) {
	big1, err := seq.ParseTerms("-123456789012345678901234567890,0,42")
	require.NoError(t, err)
	decoded, err := decodeTerms(encodeTerms(big1))
	require.NoError(t, err)
	assert.True(t, big1.Equal(decoded))
}

func TestUpsertReplacesRow(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	w, err := NewWriter(ctx, dbPath, 10)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, rec(t, "A000001", 1, 2, 3)))
	require.NoError(t, w.Write(ctx, rec(t, "A000001", 4, 5, 6, 7)))
	require.NoError(t, w.Close(ctx))

	st, err := Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Get(ctx, "A000001")
	require.NoError(t, err)
	assert.Equal(t, "4,5,6,7", got.Terms.String())
}
