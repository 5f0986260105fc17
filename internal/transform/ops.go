// Package transform implements the composable integer-sequence operators and
// the bounded-depth chain search that drives Superseeker-style matching.
package transform

import (
	"math/big"

	"github.com/rahidz/oeis-offline-matcher/internal/config"
	"github.com/rahidz/oeis-offline-matcher/pkg/seq"
)

// Complexity weight tiers. The per-operator weight is configurable (the
// tuning of opt-in weights is deliberately not hard-coded); these are the
// defaults.
const (
	weightBasic  = 1
	weightOptIn  = 2
	weightExotic = 3
)

// Op is one enumerable operator: a tagged entry in the static operator
// table. Apply returns nil when the operator is undefined on the input
// (too short, or out of guard range).
type Op struct {
	Name   string
	Args   []int64
	Weight int
	apply  func(seq.Terms) seq.Terms
}

// Step returns the machine-readable chain step for this operator.
func (o Op) Step() seq.ChainStep {
	return seq.ChainStep{Op: o.Name, Args: o.Args}
}

// Apply runs the operator.
func (o Op) Apply(terms seq.Terms) seq.Terms {
	return o.apply(terms)
}

func (o Op) String() string { return o.Step().String() }

// guard bounds for the clamped / expanding operators.
const (
	expMaxExponent = 128
	rleMaxRun      = 64
	rleMaxDecoded  = 256
)

// Catalog builds the enabled operator table from configuration. Operators
// are emitted in a fixed order so enumeration is deterministic.
func Catalog(cfg config.TransformConfig) []Op {
	weights := defaultWeights()
	for name, w := range cfg.Weights {
		weights[name] = w
	}
	enabled := enabledSet(cfg.OperatorSet)

	var ops []Op
	add := func(name string, args []int64, fn func(seq.Terms) seq.Terms) {
		if !enabled[name] {
			return
		}
		ops = append(ops, Op{Name: name, Args: args, Weight: weights[name], apply: fn})
	}

	for _, a := range cfg.ScaleValues {
		if a == 0 || a == 1 {
			continue
		}
		alpha := a
		add("scale", []int64{alpha}, func(t seq.Terms) seq.Terms { return scale(t, alpha) })
	}
	for _, a := range cfg.ScaleValues {
		for _, b := range cfg.BetaValues {
			if a == 0 || b == 0 {
				continue
			}
			alpha, beta := a, b
			add("affine", []int64{alpha, beta}, func(t seq.Terms) seq.Terms { return affine(t, alpha, beta) })
		}
	}
	for _, b := range cfg.BetaValues {
		if b == 0 {
			continue
		}
		beta := b
		add("affine", []int64{1, beta}, func(t seq.Terms) seq.Terms { return affine(t, 1, beta) })
	}
	for _, k := range cfg.ShiftValues {
		if k < 1 {
			continue
		}
		kk := int(k)
		add("shift_forward", []int64{k}, func(t seq.Terms) seq.Terms { return shiftForward(t, kk) })
		add("shift_back", []int64{k}, func(t seq.Terms) seq.Terms { return shiftBack(t, kk) })
	}
	add("diff", nil, diff)
	add("diff2", nil, func(t seq.Terms) seq.Terms { return diff(diff(t)) })
	add("partial_sum", nil, partialSum)
	add("abs", nil, absOp)
	add("gcd_norm", nil, gcdNorm)
	for _, k := range cfg.DecimateValues {
		if k < 2 {
			continue
		}
		kk := int(k)
		add("decimate", []int64{k}, func(t seq.Terms) seq.Terms { return decimate(t, kk) })
	}
	add("reverse", nil, reverse)
	add("even_indexed", nil, evenIndexed)
	add("odd_indexed", nil, oddIndexed)
	for _, k := range cfg.MovsumWindows {
		if k < 2 {
			continue
		}
		kk := int(k)
		add("movsum", []int64{k}, func(t seq.Terms) seq.Terms { return movsum(t, kk) })
	}
	add("cumprod", nil, cumprod)
	add("popcount", nil, popcount)
	add("digit_sum", []int64{10}, func(t seq.Terms) seq.Terms { return digitSum(t, 10) })
	add("mod", []int64{2}, func(t seq.Terms) seq.Terms { return modOp(t, 2) })
	add("mod", []int64{10}, func(t seq.Terms) seq.Terms { return modOp(t, 10) })
	add("xor_index", nil, xorIndex)
	add("rle", nil, rle)
	add("rle_decode", nil, rleDecode)
	add("concat_index", []int64{10}, func(t seq.Terms) seq.Terms { return concatIndex(t, 10) })
	add("log", []int64{2}, func(t seq.Terms) seq.Terms { return logOp(t, 2) })
	add("exp", []int64{2}, func(t seq.Terms) seq.Terms { return expOp(t, 2) })
	add("binomial", nil, binomial)
	add("euler", nil, euler)
	add("mobius", nil, mobius)

	return ops
}

func defaultWeights() map[string]int {
	return map[string]int{
		"scale": weightBasic, "affine": weightBasic,
		"shift_forward": weightBasic, "shift_back": weightBasic,
		"diff": weightBasic, "diff2": weightBasic, "partial_sum": weightBasic,
		"abs": weightBasic, "gcd_norm": weightBasic, "decimate": weightBasic,
		"reverse": weightBasic, "even_indexed": weightBasic, "odd_indexed": weightBasic,
		"movsum": weightBasic, "cumprod": weightBasic,
		"popcount": weightOptIn, "digit_sum": weightOptIn, "mod": weightOptIn,
		"xor_index": weightOptIn, "rle": weightOptIn, "rle_decode": weightOptIn,
		"concat_index": weightOptIn, "log": weightOptIn, "exp": weightOptIn,
		"binomial": weightExotic, "euler": weightExotic, "mobius": weightExotic,
	}
}

// defaultOperators is the basic set enabled when no operator set is named.
// diff2 duplicates diff.diff output and is only enabled by explicit
// operator sets.
var defaultOperators = []string{
	"scale", "affine", "shift_forward", "shift_back", "diff",
	"partial_sum", "abs", "gcd_norm", "decimate", "reverse",
	"even_indexed", "odd_indexed", "movsum", "cumprod",
}

func enabledSet(names []string) map[string]bool {
	out := make(map[string]bool)
	if len(names) == 0 {
		names = defaultOperators
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

// ChainComplexity is the summed operator weight plus a one-point surcharge
// for composite chains.
func ChainComplexity(chain []Op) int {
	total := 0
	for _, op := range chain {
		total += op.Weight
	}
	if len(chain) > 1 {
		total++
	}
	return total
}

// ApplyChain applies every operator in order. The empty chain is the
// identity. Returns nil as soon as an operator is undefined on its input.
func ApplyChain(terms seq.Terms, chain []Op) seq.Terms {
	out := terms.Clone()
	for _, op := range chain {
		out = op.Apply(out)
		if out == nil {
			return nil
		}
	}
	return out
}

// Steps converts a chain to its metadata form.
func Steps(chain []Op) []seq.ChainStep {
	out := make([]seq.ChainStep, len(chain))
	for i, op := range chain {
		out[i] = op.Step()
	}
	return out
}

// --- operator implementations ---

func scale(t seq.Terms, alpha int64) seq.Terms {
	a := big.NewInt(alpha)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Mul(v, a)
	}
	return out
}

func affine(t seq.Terms, alpha, beta int64) seq.Terms {
	a, b := big.NewInt(alpha), big.NewInt(beta)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Add(new(big.Int).Mul(v, a), b)
	}
	return out
}

func shiftForward(t seq.Terms, k int) seq.Terms {
	if k >= len(t) {
		return nil
	}
	return t[k:].Clone()
}

func shiftBack(t seq.Terms, k int) seq.Terms {
	if k >= len(t) {
		return nil
	}
	return t[:len(t)-k].Clone()
}

func diff(t seq.Terms) seq.Terms {
	return t.Diffs()
}

func partialSum(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	acc := new(big.Int)
	for i, v := range t {
		acc = new(big.Int).Add(acc, v)
		out[i] = acc
	}
	return out
}

func absOp(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Abs(v)
	}
	return out
}

func gcdNorm(t seq.Terms) seq.Terms {
	g := t.GCD()
	if g.Sign() == 0 || g.Cmp(big.NewInt(1)) == 0 {
		return t.Clone()
	}
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Quo(v, g)
	}
	return out
}

func decimate(t seq.Terms, k int) seq.Terms {
	var out seq.Terms
	for i := 0; i < len(t); i += k {
		out = append(out, new(big.Int).Set(t[i]))
	}
	return out
}

func reverse(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[len(t)-1-i] = new(big.Int).Set(v)
	}
	return out
}

func evenIndexed(t seq.Terms) seq.Terms {
	var out seq.Terms
	for i := 0; i < len(t); i += 2 {
		out = append(out, new(big.Int).Set(t[i]))
	}
	return out
}

func oddIndexed(t seq.Terms) seq.Terms {
	var out seq.Terms
	for i := 1; i < len(t); i += 2 {
		out = append(out, new(big.Int).Set(t[i]))
	}
	return out
}

func movsum(t seq.Terms, k int) seq.Terms {
	if len(t) < k {
		return nil
	}
	out := make(seq.Terms, len(t)-k+1)
	for i := 0; i+k <= len(t); i++ {
		acc := new(big.Int)
		for j := 0; j < k; j++ {
			acc.Add(acc, t[i+j])
		}
		out[i] = acc
	}
	return out
}

func cumprod(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	acc := big.NewInt(1)
	for i, v := range t {
		acc = new(big.Int).Mul(acc, v)
		out[i] = acc
	}
	return out
}

func popcount(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	abs := new(big.Int)
	for i, v := range t {
		abs.Abs(v)
		count := 0
		for _, w := range abs.Bits() {
			for ; w != 0; w &= w - 1 {
				count++
			}
		}
		out[i] = big.NewInt(int64(count))
	}
	return out
}

func digitSum(t seq.Terms, base int64) seq.Terms {
	b := big.NewInt(base)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		n := new(big.Int).Abs(v)
		sum := int64(0)
		rem := new(big.Int)
		for n.Sign() > 0 {
			n.QuoRem(n, b, rem)
			sum += rem.Int64()
		}
		out[i] = big.NewInt(sum)
	}
	return out
}

func modOp(t seq.Terms, m int64) seq.Terms {
	mod := big.NewInt(m)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Mod(v, mod)
	}
	return out
}

func xorIndex(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	for i, v := range t {
		out[i] = new(big.Int).Xor(v, big.NewInt(int64(i)))
	}
	return out
}

// rle emits (value, run length) pairs for maximal runs of equal terms.
func rle(t seq.Terms) seq.Terms {
	var out seq.Terms
	for i := 0; i < len(t); {
		j := i
		for j < len(t) && t[j].Cmp(t[i]) == 0 {
			j++
		}
		out = append(out, new(big.Int).Set(t[i]), big.NewInt(int64(j-i)))
		i = j
	}
	return out
}

// rleDecode expands (value, run length) pairs, with guards on run length
// and total expansion. Undefined inputs yield nil and are discarded.
func rleDecode(t seq.Terms) seq.Terms {
	if len(t)%2 != 0 {
		return nil
	}
	var out seq.Terms
	for i := 0; i < len(t); i += 2 {
		if !t[i+1].IsInt64() {
			return nil
		}
		n := t[i+1].Int64()
		if n < 1 || n > rleMaxRun {
			return nil
		}
		for j := int64(0); j < n; j++ {
			out = append(out, new(big.Int).Set(t[i]))
		}
		if len(out) > rleMaxDecoded {
			return nil
		}
	}
	return out
}

// concatIndex appends the base-digits of the index after the term's digits.
func concatIndex(t seq.Terms, base int64) seq.Terms {
	b := big.NewInt(base)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		shift := big.NewInt(1)
		idx := int64(i)
		if idx == 0 {
			shift.Set(b)
		}
		for n := idx; n > 0; n /= base {
			shift.Mul(shift, b)
		}
		mag := new(big.Int).Mul(new(big.Int).Abs(v), shift)
		mag.Add(mag, big.NewInt(idx))
		if v.Sign() < 0 {
			mag.Neg(mag)
		}
		out[i] = mag
	}
	return out
}

// logOp is the clamped integer logarithm: floor(log_base |a|), 0 for |a| < 2.
func logOp(t seq.Terms, base int64) seq.Terms {
	b := big.NewInt(base)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		n := new(big.Int).Abs(v)
		count := int64(0)
		for n.Cmp(b) >= 0 {
			n.Quo(n, b)
			count++
		}
		out[i] = big.NewInt(count)
	}
	return out
}

// expOp raises base to each term, clamped: negative exponents map to 0 and
// exponents beyond the guard make the whole output undefined.
func expOp(t seq.Terms, base int64) seq.Terms {
	b := big.NewInt(base)
	out := make(seq.Terms, len(t))
	for i, v := range t {
		if v.Sign() < 0 {
			out[i] = big.NewInt(0)
			continue
		}
		if !v.IsInt64() || v.Int64() > expMaxExponent {
			return nil
		}
		out[i] = new(big.Int).Exp(b, v, nil)
	}
	return out
}

// binomial is the binomial transform: b_n = sum_{k<=n} C(n,k) a_k.
func binomial(t seq.Terms) seq.Terms {
	out := make(seq.Terms, len(t))
	for n := range t {
		acc := new(big.Int)
		c := big.NewInt(1)
		for k := 0; k <= n; k++ {
			acc.Add(acc, new(big.Int).Mul(c, t[k]))
			// C(n,k+1) = C(n,k) * (n-k) / (k+1)
			c = new(big.Int).Mul(c, big.NewInt(int64(n-k)))
			c.Quo(c, big.NewInt(int64(k+1)))
		}
		out[n] = acc
	}
	return out
}

// euler is the Euler transform, treating the input as a_1..a_N:
//
//	c_n = sum_{d|n} d*a_d,  n*b_n = c_n + sum_{k=1}^{n-1} c_k*b_{n-k}
//
// The output is undefined (nil) when a division is inexact, which can only
// happen on inputs that are not genuine integer-sequence prefixes.
func euler(t seq.Terms) seq.Terms {
	n := len(t)
	if n == 0 {
		return nil
	}
	c := make(seq.Terms, n+1)
	for i := 1; i <= n; i++ {
		acc := new(big.Int)
		for d := 1; d <= i; d++ {
			if i%d == 0 {
				acc.Add(acc, new(big.Int).Mul(big.NewInt(int64(d)), t[d-1]))
			}
		}
		c[i] = acc
	}
	b := make(seq.Terms, n+1)
	for i := 1; i <= n; i++ {
		acc := new(big.Int).Set(c[i])
		for k := 1; k < i; k++ {
			acc.Add(acc, new(big.Int).Mul(c[k], b[i-k]))
		}
		q, r := new(big.Int).QuoRem(acc, big.NewInt(int64(i)), new(big.Int))
		if r.Sign() != 0 {
			return nil
		}
		b[i] = q
	}
	return b[1:]
}

// mobius is the Moebius transform: b_n = sum_{d|n} mu(n/d) a_d, 1-indexed.
func mobius(t seq.Terms) seq.Terms {
	n := len(t)
	mu := mobiusTable(n)
	out := make(seq.Terms, n)
	for i := 1; i <= n; i++ {
		acc := new(big.Int)
		for d := 1; d <= i; d++ {
			if i%d == 0 {
				m := mu[i/d]
				if m == 0 {
					continue
				}
				term := new(big.Int).Set(t[d-1])
				if m < 0 {
					acc.Sub(acc, term)
				} else {
					acc.Add(acc, term)
				}
			}
		}
		out[i-1] = acc
	}
	return out
}

func mobiusTable(n int) []int {
	mu := make([]int, n+1)
	if n >= 1 {
		mu[1] = 1
	}
	for i := 1; i <= n; i++ {
		if mu[i] == 0 && i > 1 {
			continue
		}
		for j := 2 * i; j <= n; j += i {
			mu[j] -= mu[i]
		}
	}
	return mu
}
