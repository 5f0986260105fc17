// Package combine implements the brute-force and rational-algebra search
// for small linear combinations of stored sequences that reproduce a query.
package combine

import (
	"context"
	"sort"

	"github.com/rahidz/oeis-offline-matcher/internal/match"
	"github.com/rahidz/oeis-offline-matcher/internal/similarity"
	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// hardCapBucket bounds the bucket regardless of configuration.
const hardCapBucket = 200

// Entry pairs a candidate record with the rank score that put it in the
// bucket (higher is better; similarity candidates carry |corr|).
type Entry struct {
	Record    *seq.SequenceRecord
	RankScore float64
}

// Bucket is the deduplicated, capped candidate set for combination search.
type Bucket struct {
	Entries []Entry
}

// IDs returns the bucket ids in bucket order.
func (b *Bucket) IDs() []string {
	out := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.Record.ID
	}
	return out
}

// Size returns the number of bucket entries.
func (b *Bucket) Size() int { return len(b.Entries) }

// BuildBucket assembles the candidate bucket: the union of the relaxed
// invariant-filtered pool and the similarity top-K, deduplicated by id and
// capped. Similarity-picked records keep their rank order at the front;
// the rest follow by closeness in length, then id.
func BuildBucket(ctx context.Context, st store.SequenceStore, query seq.SequenceQuery, ranked []similarity.Scored, limit int) (*Bucket, error) {
	if limit <= 0 || limit > hardCapBucket {
		limit = hardCapBucket
	}
	qlen := query.Len()

	byID := make(map[string]Entry)
	var order []string

	for _, s := range ranked {
		if _, ok := byID[s.Record.ID]; ok {
			continue
		}
		byID[s.Record.ID] = Entry{Record: s.Record, RankScore: abs(s.Corr)}
		order = append(order, s.Record.ID)
	}

	// Fill the remainder from the relaxed candidate pool.
	preds := match.DerivePredicates(query, match.FilterCombination)
	var pool []*seq.SequenceRecord
	err := st.Scan(ctx, preds, func(rec *seq.SequenceRecord) error {
		if _, ok := byID[rec.ID]; ok {
			return nil
		}
		pool = append(pool, rec)
		return nil
	})
	if err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		return nil, err
	}
	sort.SliceStable(pool, func(i, j int) bool {
		di, dj := lengthDistance(pool[i], qlen), lengthDistance(pool[j], qlen)
		if di != dj {
			return di < dj
		}
		return pool[i].ID < pool[j].ID
	})
	for _, rec := range pool {
		if len(order) >= limit {
			break
		}
		byID[rec.ID] = Entry{Record: rec}
		order = append(order, rec.ID)
	}

	if len(order) > limit {
		order = order[:limit]
	}
	bucket := &Bucket{Entries: make([]Entry, len(order))}
	for i, id := range order {
		bucket.Entries[i] = byID[id]
	}
	return bucket, nil
}

func lengthDistance(rec *seq.SequenceRecord, qlen int) int {
	d := rec.Length - qlen
	if d < 0 {
		d = -d
	}
	return d
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
