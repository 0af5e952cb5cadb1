package pool

import (
	"math/big"

	"swapCore/internal/dexerr"
)

// MaxAmount is the largest token amount or reserve the exchange accepts (2^128-1).
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

func checkAmount(v *big.Int, what string) error {
	if v == nil || v.Sign() < 0 {
		return dexerr.ErrInvalidAmount.Wrapf("%s must be a non-negative integer", what)
	}
	if v.Cmp(MaxAmount) > 0 {
		return dexerr.ErrArithmeticOverflow.Wrapf("%s %s exceeds 128 bits", what, v)
	}
	return nil
}

func checkPositive(v *big.Int, what string) error {
	if err := checkAmount(v, what); err != nil {
		return err
	}
	if v.Sign() == 0 {
		return dexerr.ErrInvalidAmount.Wrapf("%s must be positive", what)
	}
	return nil
}

func checkAmounts(vs []*big.Int, n int, what string) error {
	if len(vs) != n {
		return dexerr.ErrInvalidAmount.Wrapf("expected %d %s, got %d", n, what, len(vs))
	}
	for _, v := range vs {
		if err := checkAmount(v, what); err != nil {
			return err
		}
	}
	return nil
}

func checkReserve(v *big.Int) error {
	if v.Cmp(MaxAmount) > 0 {
		return dexerr.ErrArithmeticOverflow.Wrapf("reserve %s exceeds 128 bits", v)
	}
	return nil
}

// mulDiv returns floor(a*b/c).
func mulDiv(a, b, c *big.Int) (*big.Int, error) {
	if c.Sign() == 0 {
		return nil, dexerr.ErrDivisionByZero
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c), nil
}

// mulDivCeil returns ceil(a*b/c) for non-negative operands.
func mulDivCeil(a, b, c *big.Int) (*big.Int, error) {
	if c.Sign() == 0 {
		return nil, dexerr.ErrDivisionByZero
	}
	q, r := new(big.Int).QuoRem(new(big.Int).Mul(a, b), c, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cloneAmounts(vs []*big.Int) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = cloneAmount(v)
	}
	return out
}

func zeroAmounts(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int)
	}
	return out
}

func indexOf(tokens []string, token string) (int, error) {
	for i, t := range tokens {
		if t == token {
			return i, nil
		}
	}
	return -1, dexerr.ErrTokenNotInPool.Wrapf("token %q", token)
}

func checkTokens(tokens []string, min, max int) error {
	if len(tokens) < min || len(tokens) > max {
		return dexerr.ErrTokenCount.Wrapf("%d tokens, want %d..%d", len(tokens), min, max)
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t == "" {
			return dexerr.ErrInvalidPool.Wrap("empty token id")
		}
		if _, ok := seen[t]; ok {
			return dexerr.ErrDuplicateTokens.Wrapf("token %q listed twice", t)
		}
		seen[t] = struct{}{}
	}
	return nil
}
