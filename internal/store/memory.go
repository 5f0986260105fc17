package store

import (
	"context"
	"math"
	"math/big"
	"sort"
	"sync"

	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// Matches evaluates the predicate set against a record in memory. It is the
// reference semantics the SQL pushdown must agree with.
func (p PredicateSet) Matches(rec *seq.SequenceRecord) bool {
	inv := rec.Invariants
	if p.PrefixHash != nil && inv.PrefixHash != *p.PrefixHash {
		return false
	}
	if len(p.SignPatterns) > 0 && !containsSign(p.SignPatterns, inv.SignPattern) {
		return false
	}
	if len(p.FirstDiffSigns) > 0 && !containsDiffSign(p.FirstDiffSigns, inv.FirstDiffSign) {
		return false
	}
	if p.NonzeroMin != nil && inv.NonzeroCount < *p.NonzeroMin {
		return false
	}
	if p.NonzeroMax != nil && inv.NonzeroCount > *p.NonzeroMax {
		return false
	}
	if p.MinLength > 0 && rec.Length < p.MinLength {
		return false
	}
	if p.MaxLength > 0 && rec.Length > p.MaxLength {
		return false
	}
	if p.GrowthMin != nil && (math.IsNaN(inv.GrowthRate) || inv.GrowthRate < *p.GrowthMin) {
		return false
	}
	if p.GrowthMax != nil && (math.IsNaN(inv.GrowthRate) || inv.GrowthRate > *p.GrowthMax) {
		return false
	}
	if p.VarianceMin != nil && (math.IsNaN(inv.Variance) || inv.Variance < *p.VarianceMin) {
		return false
	}
	if p.VarianceMax != nil && (math.IsNaN(inv.Variance) || inv.Variance > *p.VarianceMax) {
		return false
	}
	if p.GCDDivides != nil && p.GCDDivides.Sign() != 0 {
		g, ok := new(big.Int).SetString(inv.GCDVal, 10)
		if ok && g.Sign() != 0 {
			if new(big.Int).Mod(p.GCDDivides, g).Sign() != 0 {
				return false
			}
		}
	}
	return true
}

func containsSign(set []seq.SignPattern, v seq.SignPattern) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsDiffSign(set []seq.DiffSignPattern, v seq.DiffSignPattern) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// MemoryStore is an in-memory SequenceStore for small corpora and tests.
// It applies every predicate with Matches, without index pushdown.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*seq.SequenceRecord
	ids     []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*seq.SequenceRecord)}
}

// Add inserts or replaces a record. Adding is only valid before matching
// starts; the store is read-only for the life of a query.
func (m *MemoryStore) Add(rec *seq.SequenceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		m.ids = append(m.ids, rec.ID)
		sort.Strings(m.ids)
	}
	m.records[rec.ID] = rec
}

// Get returns the record for id, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, id string) (*seq.SequenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// LookupByPrefixHash streams records with the given prefix hash in id order.
func (m *MemoryStore) LookupByPrefixHash(ctx context.Context, h uint64, fn func(*seq.SequenceRecord) error) error {
	return m.Scan(ctx, PredicateSet{PrefixHash: &h}, fn)
}

// Scan streams matching records in id order.
func (m *MemoryStore) Scan(ctx context.Context, preds PredicateSet, fn func(*seq.SequenceRecord) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := m.records[id]
		if !preds.Matches(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			if err == ErrStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

// Stats returns corpus-level statistics.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &Stats{Count: int64(len(m.records))}
	first := true
	for _, rec := range m.records {
		if first || rec.Length < st.MinLength {
			st.MinLength = rec.Length
		}
		if first || rec.Length > st.MaxLength {
			st.MaxLength = rec.Length
		}
		first = false
	}
	return st, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
