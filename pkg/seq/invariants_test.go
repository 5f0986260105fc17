package seq

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignOf(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
		want  SignPattern
	}{
		{"empty", Terms{}, SignEmpty},
		{"all zero", FromInt64s(0, 0, 0), SignAllZero},
		{"nonnegative", FromInt64s(0, 1, 2, 3), SignNonnegative},
		{"nonpositive", FromInt64s(0, -1, -2), SignNonpositive},
		{"alternating", FromInt64s(1, -1, 2, -2), SignAlternating},
		{"alternating with zeros", FromInt64s(1, 0, -1, 1), SignAlternating},
		{"mixed", FromInt64s(1, 2, -1, 3), SignMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignOf(tt.terms))
		})
	}
}

func TestDiffSignOf(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
		want  DiffSignPattern
	}{
		{"too short", FromInt64s(5), DiffNA},
		{"increasing", FromInt64s(1, 2, 4, 8), DiffPos},
		{"decreasing", FromInt64s(8, 4, 2), DiffNeg},
		{"flat", FromInt64s(7, 7, 7), DiffFlat},
		{"nondecreasing", FromInt64s(1, 1, 2, 3), DiffNonneg},
		{"nonincreasing", FromInt64s(3, 2, 2, 1), DiffNonpos},
		{"mixed", FromInt64s(1, 3, 2, 5), DiffMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiffSignOf(tt.terms))
		})
	}
}

func TestGCD(t *testing.T) {
	assert.Equal(t, int64(7), FromInt64s(7, 14, 21, 28, 35).GCD().Int64())
	assert.Equal(t, int64(1), FromInt64s(2, 3).GCD().Int64())
	assert.Equal(t, int64(0), FromInt64s(0, 0).GCD().Int64())
	assert.Equal(t, int64(6), FromInt64s(-6, 12, -18).GCD().Int64())
}

func TestPrefixHashCoversFirstFiveTermsOnly(t *testing.T) {
	base := FromInt64s(1, 2, 3, 4, 5, 6, 7)
	same := FromInt64s(1, 2, 3, 4, 5, 99, 100)
	diff := FromInt64s(1, 2, 3, 4, 6, 6, 7)

	assert.Equal(t, PrefixHash(base), PrefixHash(same))
	assert.NotEqual(t, PrefixHash(base), PrefixHash(diff))

	// Shorter than five terms hashes everything present.
	short := FromInt64s(1, 2, 3)
	assert.Equal(t, PrefixHash(short), PrefixHash(FromInt64s(1, 2, 3)))
}

func TestPrefixHashOrderSensitive(t *testing.T) {
	assert.NotEqual(t,
		PrefixHash(FromInt64s(1, 2, 3, 4, 5)),
		PrefixHash(FromInt64s(5, 4, 3, 2, 1)))
	// "12" followed by "3" must not collide with "1" followed by "23".
	a := Terms{big.NewInt(12), big.NewInt(3)}
	b := Terms{big.NewInt(1), big.NewInt(23)}
	assert.NotEqual(t, PrefixHash(a), PrefixHash(b))
}

func TestDeriveInvariants(t *testing.T) {
	inv := DeriveInvariants(FromInt64s(2, 4, 6, 8, 10, 12))
	assert.Equal(t, "2", inv.MinVal)
	assert.Equal(t, "12", inv.MaxVal)
	assert.Equal(t, "2", inv.GCDVal)
	assert.True(t, inv.IsNondecreasing)
	assert.False(t, inv.IsNonincreasing)
	assert.Equal(t, SignNonnegative, inv.SignPattern)
	assert.Equal(t, 6, inv.NonzeroCount)
	assert.Equal(t, DiffPos, inv.FirstDiffSign)
	assert.InDelta(t, 11.666, inv.Variance, 0.01)
}

func TestDeriveInvariantsRecompute(t *testing.T) {
	// The stored hash must equal a recomputation over the first five terms.
	terms := FromInt64s(0, 1, 1, 2, 3, 5, 8, 13)
	inv := DeriveInvariants(terms)
	require.Equal(t, PrefixHash(terms[:5]), inv.PrefixHash)
}

func TestGrowthRate(t *testing.T) {
	// Powers of two grow like exp(n*ln 2).
	pow2 := FromInt64s(1, 2, 4, 8, 16, 32, 64, 128)
	g := GrowthRate(pow2)
	assert.InDelta(t, math.Ln2, g, 1e-9)

	// Flat and too-short sequences are undefined.
	assert.True(t, math.IsNaN(GrowthRate(FromInt64s(5, 5, 5, 5))))
	assert.True(t, math.IsNaN(GrowthRate(FromInt64s(1, 2))))
	assert.True(t, math.IsNaN(GrowthRate(FromInt64s(0, 0, 0))))
}

func TestVariance(t *testing.T) {
	assert.InDelta(t, 2.0, FromInt64s(1, 2, 3, 4, 5).Variance(), 1e-12)
	assert.Equal(t, 0.0, FromInt64s(3, 3, 3).Variance())
	assert.True(t, math.IsNaN(FromInt64s(3).Variance()))
}

func TestTermsRoundTrip(t *testing.T) {
	orig := FromInt64s(-3, 0, 7, 1000000)
	parsed, err := ParseTerms(orig.String())
	require.NoError(t, err)
	assert.True(t, orig.Equal(parsed))

	big1, err := ParseTerms("123456789012345678901234567890,-1")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890,-1", big1.String())
}
