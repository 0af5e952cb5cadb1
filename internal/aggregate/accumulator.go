package aggregate

import (
	"fmt"
	"math/big"
	"sort"

	"swapCore/internal/model"
)

// TokenTotals holds one token's flows inside a window.
type TokenTotals struct {
	VolumeIn  *big.Int
	VolumeOut *big.Int
	Fee       *big.Int
}

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID         uint64
	WindowStart    uint64
	WindowEnd      uint64
	SwapCount      uint64
	LiquidityOps   uint64
	Tokens         map[string]*TokenTotals
	AdminShares    *big.Int
	ReferralShares *big.Int
}

func NewAccumulator(poolID, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:         poolID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Tokens:         make(map[string]*TokenTotals),
		AdminShares:    big.NewInt(0),
		ReferralShares: big.NewInt(0),
	}
}

// Add folds rec into the window. It reports false for kinds that carry no
// pool activity.
func (a *Accumulator) Add(rec model.AuditRecord) (bool, error) {
	switch rec.Kind {
	case model.AuditSwap:
		return true, a.applySwap(rec)
	case model.AuditAddLiquidity, model.AuditRemoveLiquidity:
		if err := a.applyShares(rec); err != nil {
			return false, err
		}
		a.LiquidityOps++
		return true, nil
	default:
		return false, nil
	}
}

func (a *Accumulator) applySwap(rec model.AuditRecord) error {
	if rec.TokenIn == "" || rec.TokenOut == "" {
		return fmt.Errorf("swap record %d has no tokens", rec.Seq)
	}
	in, err := parseBigInt(rec.AmountIn)
	if err != nil {
		return err
	}
	out, err := parseBigInt(rec.AmountOut)
	if err != nil {
		return err
	}
	fee, err := parseBigInt(rec.Fee)
	if err != nil {
		return err
	}
	if err := a.applyShares(rec); err != nil {
		return err
	}

	a.token(rec.TokenIn).VolumeIn.Add(a.token(rec.TokenIn).VolumeIn, in)
	a.token(rec.TokenOut).VolumeOut.Add(a.token(rec.TokenOut).VolumeOut, out)
	if fee.Sign() > 0 {
		feeToken := rec.FeeToken
		if feeToken == "" {
			feeToken = rec.TokenIn
		}
		t := a.token(feeToken)
		t.Fee.Add(t.Fee, fee)
	}
	a.SwapCount++
	return nil
}

func (a *Accumulator) applyShares(rec model.AuditRecord) error {
	admin, err := parseBigInt(rec.ExchangeShares)
	if err != nil {
		return err
	}
	referral, err := parseBigInt(rec.ReferralShares)
	if err != nil {
		return err
	}
	a.AdminShares.Add(a.AdminShares, admin)
	a.ReferralShares.Add(a.ReferralShares, referral)
	return nil
}

func (a *Accumulator) token(token string) *TokenTotals {
	t, ok := a.Tokens[token]
	if !ok {
		t = &TokenTotals{VolumeIn: big.NewInt(0), VolumeOut: big.NewInt(0), Fee: big.NewInt(0)}
		a.Tokens[token] = t
	}
	return t
}

// TokenList returns the tokens seen in the window in lexical order.
func (a *Accumulator) TokenList() []string {
	out := make([]string, 0, len(a.Tokens))
	for t := range a.Tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}
