// Package render turns match metadata into human-readable and LaTeX
// explanations. Rendering is a pure function of the match; no store access.
package render

import (
	"fmt"
	"strings"

	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// MatchLine renders one exact or transform match as a single line.
func MatchLine(m seq.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s offset=%d length=%d score=%.3f", m.ID, m.Type, m.Offset, m.Length, m.Score)
	if len(m.TransformChain) > 0 {
		fmt.Fprintf(&b, " via [%s]", seq.ChainString(m.TransformChain))
	}
	if m.Name != "" {
		fmt.Fprintf(&b, "  %s", m.Name)
	}
	if len(m.Snippet) > 0 {
		fmt.Fprintf(&b, "\n    terms: %s", clipTerms(m.Snippet, 20))
	}
	return b.String()
}

// SimilarityLine renders one similarity hit.
func SimilarityLine(h seq.SimilarityHit) string {
	line := fmt.Sprintf("%s corr=%.4f nmse=%.4g fit=%.3g*x%+.3g", h.ID, h.Corr, h.NMSE, h.Scale, h.Offset)
	if h.Name != "" {
		line += "  " + h.Name
	}
	return line
}

// Expression renders a combination as "a(n) = c1*A...(n+s1) + c2*A...(n+s2)".
func Expression(m seq.CombinationMatch) string {
	parts := make([]string, len(m.ComponentIDs))
	for i, id := range m.ComponentIDs {
		parts[i] = fmt.Sprintf("%s*%s", m.Coefficients[i].RatString(), componentExpr(m, i, id))
	}
	return "a(n) = " + strings.Join(parts, " + ")
}

// LaTeX renders a combination for LaTeX output.
func LaTeX(m seq.CombinationMatch) string {
	parts := make([]string, len(m.ComponentIDs))
	for i, id := range m.ComponentIDs {
		var coeff string
		if m.Coefficients[i].IsInt() {
			coeff = m.Coefficients[i].Num().String()
		} else {
			coeff = fmt.Sprintf("\\tfrac{%s}{%s}", m.Coefficients[i].Num(), m.Coefficients[i].Denom())
		}
		base := fmt.Sprintf("\\mathrm{%s}(%s)", id, shiftTeX(m.Shifts[i]))
		switch m.ComponentTransforms[i] {
		case "diff":
			base = "\\Delta\\," + base
		case "partial_sum":
			base = "\\Sigma\\," + base
		}
		parts[i] = coeff + "\\," + base
	}
	return "a_{n} = " + strings.Join(parts, " + ")
}

// CombinationLine renders one combination with its score metadata.
func CombinationLine(m seq.CombinationMatch) string {
	return fmt.Sprintf("%s  [length=%d complexity=%d score=%.3f]",
		Expression(m), m.Length, m.Complexity, m.Score)
}

func componentExpr(m seq.CombinationMatch, i int, id string) string {
	inner := fmt.Sprintf("%s(%s)", id, shiftStr(m.Shifts[i]))
	switch m.ComponentTransforms[i] {
	case "diff":
		return "diff(" + inner + ")"
	case "partial_sum":
		return "psum(" + inner + ")"
	default:
		return inner
	}
}

func shiftStr(s int) string {
	switch {
	case s == 0:
		return "n"
	case s > 0:
		return fmt.Sprintf("n+%d", s)
	default:
		return fmt.Sprintf("n%d", s)
	}
}

func shiftTeX(s int) string {
	return shiftStr(s)
}

func clipTerms(t seq.Terms, limit int) string {
	if len(t) <= limit {
		return t.String()
	}
	return t[:limit].String() + ",..."
}
