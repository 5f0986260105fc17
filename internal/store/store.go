// Package store provides read-only access to the indexed OEIS corpus through
// a single-file SQLite index with invariant predicate pushdown.
package store

import (
	"context"
	"errors"
	"math/big"

	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// ErrStopScan is returned by a scan callback to end iteration early without
// reporting an error to the caller.
var ErrStopScan = errors.New("store: stop scan")

// ErrNotFound is returned by Get for a missing id.
var ErrNotFound = errors.New("store: record not found")

// PredicateSet is a conjunction of invariant-band predicates pushed down to
// the backing index. The zero value matches the whole corpus.
type PredicateSet struct {
	// PrefixHash, when set, requires exact prefix-hash equality.
	PrefixHash *uint64

	// SignPatterns restricts sign_pattern to the listed values.
	SignPatterns []seq.SignPattern

	// FirstDiffSigns restricts first_diff_sign to the listed values.
	FirstDiffSigns []seq.DiffSignPattern

	// NonzeroMin/NonzeroMax band nonzero_count; nil means unbounded.
	NonzeroMin *int
	NonzeroMax *int

	// MinLength/MaxLength band the stored length; 0 means unbounded.
	MinLength int
	MaxLength int

	// GCDDivides, when set, requires that the stored gcd divides this value
	// (both nonzero). Pushed down as an IN-list when the value is small,
	// applied in memory otherwise.
	GCDDivides *big.Int

	// GrowthMin/GrowthMax band growth_rate; nil means unbounded. Records
	// with undefined growth (NULL) fail a bounded band.
	GrowthMin *float64
	GrowthMax *float64

	// VarianceMin/VarianceMax band variance; nil means unbounded.
	VarianceMin *float64
	VarianceMax *float64
}

// Empty reports whether the set constrains nothing.
func (p PredicateSet) Empty() bool {
	return p.PrefixHash == nil && len(p.SignPatterns) == 0 &&
		len(p.FirstDiffSigns) == 0 && p.NonzeroMin == nil && p.NonzeroMax == nil &&
		p.MinLength == 0 && p.MaxLength == 0 && p.GCDDivides == nil &&
		p.GrowthMin == nil && p.GrowthMax == nil &&
		p.VarianceMin == nil && p.VarianceMax == nil
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Count     int64
	MinLength int
	MaxLength int
}

// SequenceStore is read-only access to the indexed corpus. Implementations
// are safe for concurrent readers; mutation is not supported at query time.
type SequenceStore interface {
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*seq.SequenceRecord, error)

	// LookupByPrefixHash streams records whose prefix hash equals h, in id
	// order, invoking fn per record. fn may return ErrStopScan.
	LookupByPrefixHash(ctx context.Context, h uint64, fn func(*seq.SequenceRecord) error) error

	// Scan streams records satisfying the predicate set, in id order,
	// invoking fn per record. Cancellation is honoured between records.
	Scan(ctx context.Context, preds PredicateSet, fn func(*seq.SequenceRecord) error) error

	// Stats returns corpus-level statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the backing index.
	Close() error
}
