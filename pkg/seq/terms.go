// Package seq defines the shared value types of the matcher: term lists,
// sequence records with their derived invariants, queries, and match results.
package seq

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Terms is an ordered list of arbitrary-precision integers. A nil element is
// never valid inside Terms; wildcard positions exist only in Pattern.
type Terms []*big.Int

// FromInt64s builds a Terms value from fixed-width integers.
func FromInt64s(values ...int64) Terms {
	out := make(Terms, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

// ParseTerms parses a comma-joined list of signed decimal integers.
func ParseTerms(text string) (Terms, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	out := make(Terms, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, ok := new(big.Int).SetString(p, 10)
		if !ok {
			return nil, fmt.Errorf("seq: invalid integer term %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

// String returns the canonical comma-joined decimal encoding.
func (t Terms) String() string {
	var b strings.Builder
	for i, v := range t {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.String())
	}
	return b.String()
}

// Clone returns a deep copy.
func (t Terms) Clone() Terms {
	out := make(Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Set(v)
	}
	return out
}

// Equal reports element-wise equality.
func (t Terms) Equal(other Terms) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i].Cmp(other[i]) != 0 {
			return false
		}
	}
	return true
}

// AllZero reports whether every term is zero. An empty list is all-zero.
func (t Terms) AllZero() bool {
	for _, v := range t {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}

// NonzeroCount returns the number of nonzero terms.
func (t Terms) NonzeroCount() int {
	n := 0
	for _, v := range t {
		if v.Sign() != 0 {
			n++
		}
	}
	return n
}

// GCD returns the gcd of absolute values, 0 when all terms are zero.
func (t Terms) GCD() *big.Int {
	g := new(big.Int)
	abs := new(big.Int)
	for _, v := range t {
		abs.Abs(v)
		g.GCD(nil, nil, g, abs)
	}
	return g
}

// Floats converts terms to float64, saturating to ±Inf on overflow.
func (t Terms) Floats() []float64 {
	out := make([]float64, len(t))
	for i, v := range t {
		f, _ := new(big.Float).SetInt(v).Float64()
		out[i] = f
	}
	return out
}

// Variance returns the population variance of the terms as float64.
// Returns NaN for fewer than two terms.
func (t Terms) Variance() float64 {
	if len(t) < 2 {
		return math.NaN()
	}
	fs := t.Floats()
	mean := 0.0
	for _, f := range fs {
		mean += f
	}
	mean /= float64(len(fs))
	acc := 0.0
	for _, f := range fs {
		d := f - mean
		acc += d * d
	}
	return acc / float64(len(fs))
}

// Diffs returns the first-difference series (length n-1).
func (t Terms) Diffs() Terms {
	if len(t) < 2 {
		return nil
	}
	out := make(Terms, len(t)-1)
	for i := 0; i < len(t)-1; i++ {
		out[i] = new(big.Int).Sub(t[i+1], t[i])
	}
	return out
}

// Pattern is a query term list where a nil element matches any integer.
type Pattern []*big.Int

// Concrete reports whether the pattern contains no wildcards.
func (p Pattern) Concrete() bool {
	for _, v := range p {
		if v == nil {
			return false
		}
	}
	return true
}

// WildcardCount returns the number of wildcard positions.
func (p Pattern) WildcardCount() int {
	n := 0
	for _, v := range p {
		if v == nil {
			n++
		}
	}
	return n
}

// Terms returns the pattern as Terms. It panics if the pattern holds
// wildcards; callers must check Concrete first.
func (p Pattern) Terms() Terms {
	out := make(Terms, len(p))
	for i, v := range p {
		if v == nil {
			panic("seq: pattern with wildcards cannot be converted to terms")
		}
		out[i] = v
	}
	return out
}

// String renders the pattern with "?" at wildcard positions.
func (p Pattern) String() string {
	var b strings.Builder
	for i, v := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		if v == nil {
			b.WriteByte('?')
		} else {
			b.WriteString(v.String())
		}
	}
	return b.String()
}

// MarshalJSON renders the pattern in its textual form.
func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// MatchesAt reports whether the pattern matches text starting at offset.
func (p Pattern) MatchesAt(text Terms, offset int) bool {
	if offset < 0 || offset+len(p) > len(text) {
		return false
	}
	for i, v := range p {
		if v == nil {
			continue
		}
		if text[offset+i].Cmp(v) != 0 {
			return false
		}
	}
	return true
}
