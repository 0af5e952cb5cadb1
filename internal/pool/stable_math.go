package pool

import (
	"math/big"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/solver"
)

// stableMath evaluates liquidity and swap changes at a fixed amplification.
// Every amount is in comparable (18-decimal) units.
type stableMath struct {
	amp uint64
}

type stableSwap struct {
	newSrc   *big.Int
	newDst   *big.Int
	swapped  *big.Int
	tradeFee *big.Int
	adminFee *big.Int
}

// imbalanceFees charges the normalized fee on every reserve's distance from
// its ideal d1/d0 share and returns the reserves net of those fees.
func (m stableMath) imbalanceFees(old, next []*big.Int, d0, d1 *big.Int, f fees.Fees) ([]*big.Int, error) {
	n := len(old)
	adjusted := make([]*big.Int, n)
	for i := range old {
		ideal := new(big.Int).Mul(d1, old[i])
		ideal.Quo(ideal, d0)
		diff := new(big.Int).Sub(ideal, next[i])
		diff.Abs(diff)
		fee := f.NormalizedTradeFee(n, diff)
		if fee.Cmp(next[i]) > 0 {
			return nil, dexerr.ErrArithmeticOverflow.Wrapf("imbalance fee exceeds reserve %d", i)
		}
		adjusted[i] = new(big.Int).Sub(next[i], fee)
	}
	return adjusted, nil
}

// lpForDeposit returns the shares minted for deposit and the share value
// retained as imbalance fee.
func (m stableMath) lpForDeposit(deposit, old []*big.Int, supply *big.Int, f fees.Fees) (*big.Int, *big.Int, error) {
	d0, err := solver.ComputeD(old, m.amp)
	if err != nil {
		return nil, nil, err
	}
	next := make([]*big.Int, len(old))
	for i := range old {
		next[i] = new(big.Int).Add(old[i], deposit[i])
	}
	d1, err := solver.ComputeD(next, m.amp)
	if err != nil {
		return nil, nil, err
	}
	if d1.Cmp(d0) <= 0 {
		return nil, nil, dexerr.ErrInvariantViolated.Wrapf("deposit did not raise D (%s -> %s)", d0, d1)
	}
	adjusted, err := m.imbalanceFees(old, next, d0, d1, f)
	if err != nil {
		return nil, nil, err
	}
	d2, err := solver.ComputeD(adjusted, m.amp)
	if err != nil {
		return nil, nil, err
	}
	if d2.Cmp(d0) < 0 {
		return nil, nil, dexerr.ErrInvariantViolated.Wrapf("fees pushed D below its starting value")
	}
	mint := new(big.Int).Sub(d2, d0)
	mint.Mul(mint, supply).Quo(mint, d0)
	gross := new(big.Int).Sub(d1, d0)
	gross.Mul(gross, supply).Quo(gross, d0)
	return mint, gross.Sub(gross, mint), nil
}

// lpForWithdraw returns the shares burned for withdraw, rounded up, and the
// share value retained as imbalance fee.
func (m stableMath) lpForWithdraw(withdraw, old []*big.Int, supply *big.Int, f fees.Fees) (*big.Int, *big.Int, error) {
	d0, err := solver.ComputeD(old, m.amp)
	if err != nil {
		return nil, nil, err
	}
	next := make([]*big.Int, len(old))
	for i := range old {
		next[i] = new(big.Int).Sub(old[i], withdraw[i])
		if next[i].Sign() < 0 {
			return nil, nil, dexerr.ErrInsufficientLiquidity.Wrapf("withdrawal exceeds reserve %d", i)
		}
	}
	d1, err := solver.ComputeD(next, m.amp)
	if err != nil {
		return nil, nil, err
	}
	if d1.Cmp(d0) >= 0 {
		return nil, nil, dexerr.ErrInvariantViolated.Wrapf("withdrawal did not lower D (%s -> %s)", d0, d1)
	}
	adjusted, err := m.imbalanceFees(old, next, d0, d1, f)
	if err != nil {
		return nil, nil, err
	}
	d2, err := solver.ComputeD(adjusted, m.amp)
	if err != nil {
		return nil, nil, err
	}
	burn, err := mulDivCeil(new(big.Int).Sub(d0, d2), supply, d0)
	if err != nil {
		return nil, nil, err
	}
	gross, err := mulDiv(new(big.Int).Sub(d0, d1), supply, d0)
	if err != nil {
		return nil, nil, err
	}
	feePart := new(big.Int).Sub(burn, gross)
	if feePart.Sign() < 0 {
		feePart.SetInt64(0)
	}
	return burn, feePart, nil
}

// swapTo solves for the output of swapping amountIn of reserve in for reserve
// out. Fees are taken from the output side.
func (m stableMath) swapTo(in int, amountIn *big.Int, out int, reserves []*big.Int, f fees.Fees) (stableSwap, error) {
	d, err := solver.ComputeD(reserves, m.amp)
	if err != nil {
		return stableSwap{}, err
	}
	xNew := new(big.Int).Add(reserves[in], amountIn)
	y, err := solver.ComputeY(m.amp, d, reserves, in, out, xNew)
	if err != nil {
		return stableSwap{}, err
	}
	dy := new(big.Int).Sub(reserves[out], y)
	if dy.Sign() <= 0 {
		return stableSwap{}, dexerr.ErrInsufficientLiquidity.Wrap("swap produces no output")
	}
	tradeFee := f.TradeFee(dy)
	adminFee := f.AdminTradeFee(tradeFee)
	swapped := new(big.Int).Sub(dy, tradeFee)
	newDst := new(big.Int).Sub(reserves[out], swapped)
	newDst.Sub(newDst, adminFee)
	return stableSwap{
		newSrc:   xNew,
		newDst:   newDst,
		swapped:  swapped,
		tradeFee: tradeFee,
		adminFee: adminFee,
	}, nil
}
