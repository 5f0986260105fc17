package combine

import (
	"math/big"
)

// solveRational solves cols * x = target exactly over the rationals by
// Gaussian elimination, pivoting by largest absolute numerator to keep
// intermediates small. cols holds m column vectors of equal length k >= m.
// Returns (solution, true) only when the system is consistent on all k rows
// and has a unique solution; every coefficient is a reduced fraction.
func solveRational(cols [][]*big.Int, target []*big.Int) ([]*big.Rat, bool) {
	m := len(cols)
	if m == 0 {
		return nil, false
	}
	k := len(target)
	if k < m {
		return nil, false
	}

	// Augmented k x (m+1) matrix over big.Rat.
	rows := make([][]*big.Rat, k)
	for i := 0; i < k; i++ {
		rows[i] = make([]*big.Rat, m+1)
		for j := 0; j < m; j++ {
			rows[i][j] = new(big.Rat).SetInt(cols[j][i])
		}
		rows[i][m] = new(big.Rat).SetInt(target[i])
	}

	// Forward elimination with partial pivoting on |numerator|.
	for col := 0; col < m; col++ {
		pivot := -1
		best := new(big.Int)
		for r := col; r < k; r++ {
			if rows[r][col].Sign() == 0 {
				continue
			}
			num := new(big.Int).Abs(rows[r][col].Num())
			if pivot == -1 || num.Cmp(best) > 0 {
				pivot = r
				best = num
			}
		}
		if pivot == -1 {
			// Rank-deficient: no unique solution.
			return nil, false
		}
		rows[col], rows[pivot] = rows[pivot], rows[col]

		inv := new(big.Rat).Inv(rows[col][col])
		for j := col; j <= m; j++ {
			rows[col][j] = new(big.Rat).Mul(rows[col][j], inv)
		}
		for r := 0; r < k; r++ {
			if r == col || rows[r][col].Sign() == 0 {
				continue
			}
			factor := new(big.Rat).Set(rows[r][col])
			for j := col; j <= m; j++ {
				prod := new(big.Rat).Mul(factor, rows[col][j])
				rows[r][j] = new(big.Rat).Sub(rows[r][j], prod)
			}
		}
	}

	// Remaining rows must have vanished for the system to be consistent.
	for r := m; r < k; r++ {
		if rows[r][m].Sign() != 0 {
			return nil, false
		}
	}

	out := make([]*big.Rat, m)
	for j := 0; j < m; j++ {
		out[j] = rows[j][m]
	}
	return out, true
}

// withinCaps checks the reduced-fraction caps on a rational solution.
func withinCaps(coeffs []*big.Rat, maxNum, maxDenom int64) bool {
	num := new(big.Int)
	for _, c := range coeffs {
		num.Abs(c.Num())
		if !num.IsInt64() || num.Int64() > maxNum {
			return false
		}
		den := c.Denom()
		if !den.IsInt64() || den.Int64() > maxDenom {
			return false
		}
	}
	return true
}

// verifyRational checks cols * coeffs == target on every row using exact
// rational arithmetic.
func verifyRational(cols [][]*big.Int, coeffs []*big.Rat, target []*big.Int) bool {
	k := len(target)
	acc := new(big.Rat)
	term := new(big.Rat)
	ti := new(big.Rat)
	for i := 0; i < k; i++ {
		acc.SetInt64(0)
		for j, c := range coeffs {
			term.SetInt(cols[j][i])
			term.Mul(term, c)
			acc.Add(acc, term)
		}
		ti.SetInt(target[i])
		if acc.Cmp(ti) != 0 {
			return false
		}
	}
	return true
}
