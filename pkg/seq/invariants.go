package seq

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// SignPattern classifies the signs of a term list.
type SignPattern string

const (
	SignAllZero     SignPattern = "all_zero"
	SignNonnegative SignPattern = "nonneg"
	SignNonpositive SignPattern = "nonpos"
	SignAlternating SignPattern = "alternating"
	SignMixed       SignPattern = "mixed"
	SignEmpty       SignPattern = "empty"
)

// DiffSignPattern classifies the signs of the first-difference series.
type DiffSignPattern string

const (
	DiffNA     DiffSignPattern = "na"
	DiffPos    DiffSignPattern = "pos"
	DiffNeg    DiffSignPattern = "neg"
	DiffNonneg DiffSignPattern = "nonneg"
	DiffNonpos DiffSignPattern = "nonpos"
	DiffFlat   DiffSignPattern = "flat"
	DiffMixed  DiffSignPattern = "mixed"
)

// PrefixHashLen is the number of leading terms covered by the prefix hash.
const PrefixHashLen = 5

// Invariants holds the derived, indexable properties of a term list.
type Invariants struct {
	PrefixHash      uint64
	MinVal          string
	MaxVal          string
	GCDVal          string
	IsNondecreasing bool
	IsNonincreasing bool
	SignPattern     SignPattern
	NonzeroCount    int
	FirstDiffSign   DiffSignPattern
	GrowthRate      float64 // NaN when too short or flat
	Variance        float64
	DiffVariance    float64
}

// DeriveInvariants computes all invariants of a term list.
func DeriveInvariants(terms Terms) Invariants {
	diffs := terms.Diffs()
	inv := Invariants{
		PrefixHash:    PrefixHash(terms),
		GCDVal:        terms.GCD().String(),
		SignPattern:   SignOf(terms),
		NonzeroCount:  terms.NonzeroCount(),
		FirstDiffSign: DiffSignOf(terms),
		GrowthRate:    GrowthRate(terms),
		Variance:      terms.Variance(),
		DiffVariance:  diffs.Variance(),
	}
	if len(terms) > 0 {
		minV, maxV := terms[0], terms[0]
		for _, v := range terms[1:] {
			if v.Cmp(minV) < 0 {
				minV = v
			}
			if v.Cmp(maxV) > 0 {
				maxV = v
			}
		}
		inv.MinVal = minV.String()
		inv.MaxVal = maxV.String()
	}
	inv.IsNondecreasing, inv.IsNonincreasing = monotonicFlags(terms)
	return inv
}

// PrefixHash returns a stable order-sensitive 64-bit digest of the first
// PrefixHashLen terms (or all terms when shorter). The digest is a function
// of the canonical decimal encoding and of nothing else.
func PrefixHash(terms Terms) uint64 {
	n := len(terms)
	if n > PrefixHashLen {
		n = PrefixHashLen
	}
	return murmur3.Sum64([]byte(terms[:n].String()))
}

// SignOf classifies the sign pattern of a term list.
func SignOf(terms Terms) SignPattern {
	if len(terms) == 0 {
		return SignEmpty
	}
	if terms.AllZero() {
		return SignAllZero
	}
	allNonneg, allNonpos := true, true
	for _, v := range terms {
		if v.Sign() < 0 {
			allNonneg = false
		}
		if v.Sign() > 0 {
			allNonpos = false
		}
	}
	if allNonneg {
		return SignNonnegative
	}
	if allNonpos {
		return SignNonpositive
	}
	alternating := true
	for i := 0; i < len(terms)-1; i++ {
		a, b := terms[i].Sign(), terms[i+1].Sign()
		if a == 0 || b == 0 {
			continue
		}
		if (a > 0) == (b > 0) {
			alternating = false
			break
		}
	}
	if alternating {
		return SignAlternating
	}
	return SignMixed
}

// DiffSignOf classifies the sign pattern of the first differences.
func DiffSignOf(terms Terms) DiffSignPattern {
	if len(terms) < 2 {
		return DiffNA
	}
	pos, neg, zero := 0, 0, 0
	for _, d := range terms.Diffs() {
		switch d.Sign() {
		case 1:
			pos++
		case -1:
			neg++
		default:
			zero++
		}
	}
	total := pos + neg + zero
	switch {
	case pos == total:
		return DiffPos
	case neg == total:
		return DiffNeg
	case zero == total:
		return DiffFlat
	case neg == 0:
		return DiffNonneg
	case pos == 0:
		return DiffNonpos
	default:
		return DiffMixed
	}
}

// GrowthRate estimates the exponent g such that |a_n| ~ c*exp(g*n), fit by
// least squares of log|a_n| against n over the nonzero terms. Returns NaN
// when fewer than three nonzero terms are available or the fit is flat.
func GrowthRate(terms Terms) float64 {
	var xs, ys []float64
	fs := terms.Floats()
	for i, f := range fs {
		mag := math.Abs(f)
		if mag == 0 || math.IsInf(mag, 0) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, math.Log(mag))
	}
	if len(xs) < 3 {
		return math.NaN()
	}
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return math.NaN()
	}
	g := (n*sxy - sx*sy) / denom
	if math.Abs(g) < 1e-12 {
		return math.NaN()
	}
	return g
}

func monotonicFlags(terms Terms) (nondecreasing, nonincreasing bool) {
	if len(terms) == 0 {
		return false, false
	}
	nondecreasing, nonincreasing = true, true
	for i := 0; i < len(terms)-1; i++ {
		c := terms[i].Cmp(terms[i+1])
		if c > 0 {
			nondecreasing = false
		}
		if c < 0 {
			nonincreasing = false
		}
	}
	return nondecreasing, nonincreasing
}
