package render

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

func TestMatchLine(t *testing.T) {
	m := seq.Match{
		ID:     "A000045",
		Name:   "Fibonacci numbers",
		Type:   seq.MatchPrefix,
		Offset: 0,
		Length: 7,
		Score:  7,
	}
	line := MatchLine(m)
	assert.Contains(t, line, "A000045")
	assert.Contains(t, line, "prefix")
	assert.Contains(t, line, "length=7")
	assert.Contains(t, line, "Fibonacci numbers")
}

func TestMatchLineWithChain(t *testing.T) {
	m := seq.Match{
		ID:     "A000027",
		Type:   seq.MatchPrefix,
		Length: 5,
		Score:  2.5,
		TransformChain: []seq.ChainStep{
			{Op: "diff"},
			{Op: "affine", Args: []int64{1, -1}},
		},
	}
	line := MatchLine(m)
	assert.Contains(t, line, "via [diff . affine(1,-1)]")
}

func TestExpression(t *testing.T) {
	m := seq.CombinationMatch{
		ComponentIDs:        []string{"A000045", "A000045"},
		Coefficients:        []*big.Rat{big.NewRat(1, 1), big.NewRat(1, 1)},
		Shifts:              []int{2, 0},
		ComponentTransforms: []string{"id", "id"},
		Length:              6,
	}
	assert.Equal(t, "a(n) = 1*A000045(n+2) + 1*A000045(n)", Expression(m))
}

func TestExpressionWithTransformsAndRationals(t *testing.T) {
	m := seq.CombinationMatch{
		ComponentIDs:        []string{"A000290", "A000012"},
		Coefficients:        []*big.Rat{big.NewRat(1, 2), big.NewRat(-3, 1)},
		Shifts:              []int{0, -1},
		ComponentTransforms: []string{"diff", "id"},
		Length:              5,
	}
	assert.Equal(t, "a(n) = 1/2*diff(A000290(n)) + -3*A000012(n-1)", Expression(m))
}

func TestLaTeX(t *testing.T) {
	m := seq.CombinationMatch{
		ComponentIDs:        []string{"A000045", "A000290"},
		Coefficients:        []*big.Rat{big.NewRat(2, 1), big.NewRat(1, 2)},
		Shifts:              []int{1, 0},
		ComponentTransforms: []string{"id", "diff"},
		Length:              5,
	}
	tex := LaTeX(m)
	assert.Contains(t, tex, "a_{n} = ")
	assert.Contains(t, tex, "\\mathrm{A000045}(n+1)")
	assert.Contains(t, tex, "\\tfrac{1}{2}")
	assert.Contains(t, tex, "\\Delta\\,\\mathrm{A000290}(n)")
}

func TestSimilarityLine(t *testing.T) {
	h := seq.SimilarityHit{ID: "A000290", Name: "The squares", Corr: 0.9991, NMSE: 0.002, Scale: 1, Offset: 4}
	line := SimilarityLine(h)
	assert.Contains(t, line, "A000290")
	assert.Contains(t, line, "corr=0.9991")
	assert.Contains(t, line, "The squares")
}
