// Package solver computes the StableSwap invariant D and the balance y that
// preserves it, using Newton iteration on unbounded integers.
package solver

import (
	"math/big"

	"swapCore/internal/dexerr"
)

// MaxIterations caps every Newton loop.
const MaxIterations = 256

var one = big.NewInt(1)

// ComputeD returns the invariant for reserves under amplification amp. All
// reserves must already be in comparable units. An empty pool has D = 0.
//
// The loop stops when successive estimates differ by at most one unit, or
// after MaxIterations, in which case the last estimate is returned.
func ComputeD(reserves []*big.Int, amp uint64) (*big.Int, error) {
	n := int64(len(reserves))
	if n < 2 {
		return nil, dexerr.ErrTokenCount.Wrapf("invariant needs at least two reserves, got %d", n)
	}
	if amp == 0 {
		return nil, dexerr.ErrInvalidAmp.Wrap("amp must be positive")
	}
	sum := new(big.Int)
	for _, x := range reserves {
		if x.Sign() < 0 {
			return nil, dexerr.ErrInvalidAmount.Wrapf("negative reserve %s", x)
		}
		sum.Add(sum, x)
	}
	if sum.Sign() == 0 {
		return new(big.Int), nil
	}
	for _, x := range reserves {
		if x.Sign() == 0 {
			return nil, dexerr.ErrDivisionByZero.Wrap("invariant of a partially empty pool")
		}
	}

	bn := big.NewInt(n)
	ann := new(big.Int).Mul(new(big.Int).SetUint64(amp), bn)
	leverage := new(big.Int).Mul(sum, ann)
	annMinusOne := new(big.Int).Sub(ann, one)
	nPlusOne := big.NewInt(n + 1)

	d := new(big.Int).Set(sum)
	dProd := new(big.Int)
	num := new(big.Int)
	den := new(big.Int)
	tmp := new(big.Int)
	for i := 0; i < MaxIterations; i++ {
		dProd.Set(d)
		for _, x := range reserves {
			dProd.Mul(dProd, d)
			dProd.Quo(dProd, tmp.Mul(x, bn))
		}
		prev := new(big.Int).Set(d)

		num.Mul(dProd, bn)
		num.Add(num, leverage)
		num.Mul(num, prev)

		den.Mul(prev, annMinusOne)
		den.Add(den, tmp.Mul(dProd, nPlusOne))
		if den.Sign() == 0 {
			return nil, dexerr.ErrDivisionByZero.Wrap("invariant iteration")
		}
		d.Quo(num, den)

		if converged(d, prev) {
			break
		}
	}
	return d, nil
}

// ComputeY returns the new balance of token out such that, with token in set
// to xNew and every other reserve unchanged, the invariant stays d.
func ComputeY(amp uint64, d *big.Int, reserves []*big.Int, in, out int, xNew *big.Int) (*big.Int, error) {
	n := len(reserves)
	if in == out {
		return nil, dexerr.ErrSameToken.Wrapf("index %d", in)
	}
	if in < 0 || in >= n || out < 0 || out >= n {
		return nil, dexerr.ErrTokenNotInPool.Wrapf("indices %d, %d of %d", in, out, n)
	}
	if amp == 0 {
		return nil, dexerr.ErrInvalidAmp.Wrap("amp must be positive")
	}
	if xNew.Sign() <= 0 {
		return nil, dexerr.ErrDivisionByZero.Wrap("new input balance is zero")
	}

	bn := big.NewInt(int64(n))
	ann := new(big.Int).Mul(new(big.Int).SetUint64(amp), bn)

	s := new(big.Int).Set(xNew)
	c := new(big.Int).Mul(d, d)
	c.Quo(c, xNew)
	for k, x := range reserves {
		if k == in || k == out {
			continue
		}
		if x.Sign() <= 0 {
			return nil, dexerr.ErrDivisionByZero.Wrapf("reserve %d is zero", k)
		}
		s.Add(s, x)
		c.Mul(c, d)
		c.Quo(c, x)
	}
	nn := new(big.Int).Exp(bn, bn, nil)
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(ann, nn))
	b := new(big.Int).Quo(d, ann)
	b.Add(b, s)

	y := new(big.Int).Set(d)
	num := new(big.Int)
	den := new(big.Int)
	for i := 0; i < MaxIterations; i++ {
		prev := new(big.Int).Set(y)
		num.Mul(y, y)
		num.Add(num, c)
		den.Lsh(y, 1)
		den.Add(den, b)
		den.Sub(den, d)
		if den.Sign() <= 0 {
			return nil, dexerr.ErrInvariantViolated.Wrap("balance iteration diverged")
		}
		y.Quo(num, den)
		if converged(y, prev) {
			break
		}
	}
	return y, nil
}

func converged(a, b *big.Int) bool {
	diff := new(big.Int).Sub(a, b)
	return diff.CmpAbs(one) <= 0
}
