// Package match derives invariant predicates for candidate selection and
// runs the prefix / subsequence matcher over the candidate stream.
package match

import (
	"github.com/rahidz/oeis-offline-matcher/internal/store"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// FilterMode selects how aggressively the invariant filter constrains the
// candidate scan.
type FilterMode int

const (
	// FilterPrefix is the strict mode for prefix searches.
	FilterPrefix FilterMode = iota
	// FilterSubsequence relaxes the nonzero band by one.
	FilterSubsequence
	// FilterCombination drops sign, nonzero, and prefix-hash constraints:
	// linear combinations can change signs and cancel terms.
	FilterCombination
)

// DerivePredicates builds the predicate set a stored sequence must satisfy
// for a match to be possible. Queries with wildcards constrain only length:
// a wildcard position can hide any value, so value-derived invariants would
// over-filter.
func DerivePredicates(query seq.SequenceQuery, mode FilterMode) store.PredicateSet {
	var preds store.PredicateSet

	qlen := query.Len()
	if mode == FilterCombination {
		preds.MinLength = query.MinMatchLength
		return preds
	}

	preds.MinLength = qlen
	if !query.Terms.Concrete() {
		return preds
	}

	terms := query.Terms.Terms()

	if mode == FilterPrefix && qlen >= seq.PrefixHashLen {
		h := seq.PrefixHash(terms)
		preds.PrefixHash = &h
	}

	preds.SignPatterns = compatibleSigns(seq.SignOf(terms))
	preds.FirstDiffSigns = compatibleDiffSigns(seq.DiffSignOf(terms))

	slack := 0
	if mode == FilterSubsequence {
		slack = 1
	}
	nzMin := terms.NonzeroCount() - slack
	if nzMin < 0 {
		nzMin = 0
	}
	preds.NonzeroMin = &nzMin

	if g := terms.GCD(); g.Sign() != 0 {
		preds.GCDDivides = g
	}

	return preds
}

// compatibleSigns returns the stored sign patterns a query of the given
// pattern can match. Nil means unconstrained.
func compatibleSigns(q seq.SignPattern) []seq.SignPattern {
	switch q {
	case seq.SignNonnegative:
		return []seq.SignPattern{seq.SignNonnegative, seq.SignAllZero, seq.SignMixed}
	case seq.SignNonpositive:
		return []seq.SignPattern{seq.SignNonpositive, seq.SignAllZero, seq.SignMixed}
	case seq.SignAlternating:
		return []seq.SignPattern{seq.SignAlternating, seq.SignMixed, seq.SignAllZero}
	case seq.SignMixed:
		return []seq.SignPattern{seq.SignNonnegative, seq.SignNonpositive, seq.SignAlternating, seq.SignMixed}
	default:
		// All-zero or empty queries constrain nothing: zeros fit any pattern.
		return nil
	}
}

// compatibleDiffSigns mirrors compatibleSigns for the first-difference
// series. The stored series extends the query's, so every sign class present
// in the query's differences must be expressible in the stored pattern.
func compatibleDiffSigns(q seq.DiffSignPattern) []seq.DiffSignPattern {
	switch q {
	case seq.DiffPos:
		return []seq.DiffSignPattern{seq.DiffPos, seq.DiffNonneg, seq.DiffMixed}
	case seq.DiffNeg:
		return []seq.DiffSignPattern{seq.DiffNeg, seq.DiffNonpos, seq.DiffMixed}
	case seq.DiffNonneg:
		return []seq.DiffSignPattern{seq.DiffNonneg, seq.DiffMixed}
	case seq.DiffNonpos:
		return []seq.DiffSignPattern{seq.DiffNonpos, seq.DiffMixed}
	case seq.DiffFlat:
		return []seq.DiffSignPattern{seq.DiffFlat, seq.DiffNonneg, seq.DiffNonpos, seq.DiffMixed}
	case seq.DiffMixed:
		return []seq.DiffSignPattern{seq.DiffMixed}
	default:
		return nil
	}
}
