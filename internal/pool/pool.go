// Package pool implements the constant-product and stable-invariant pools and
// dispatches the shared swap and liquidity operations over them.
package pool

import (
	"math/big"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/solver"
)

// Kind tags the curve family of a Pool.
type Kind string

const (
	KindConstantProduct Kind = "CONSTANT_PRODUCT"
	KindStableSwap      Kind = "STABLE_SWAP"
)

// CallEnv is the per-call environment handed to pool operations.
type CallEnv struct {
	// Now is the block timestamp in unix seconds.
	Now   uint64
	Admin fees.AdminFees
}

// SwapResult describes one executed swap.
type SwapResult struct {
	AmountOut *big.Int
	// Fee is the total trade fee, denominated in FeeToken.
	Fee      *big.Int
	FeeToken string
	// AdminFee is the protocol part of Fee, converted into shares.
	AdminFee       *big.Int
	ExchangeShares *big.Int
	ReferralShares *big.Int
}

// LiquidityResult describes a liquidity change. Amounts are the token amounts
// actually moved; Shares are minted or burned for the caller.
type LiquidityResult struct {
	Shares         *big.Int
	Amounts        []*big.Int
	FeeShares      *big.Int
	ExchangeShares *big.Int
	ReferralShares *big.Int
}

// SwapVolume accumulates the amounts that entered and left a pool per token.
type SwapVolume struct {
	Input  *big.Int `json:"input"`
	Output *big.Int `json:"output"`
}

func newVolumes(n int) []SwapVolume {
	out := make([]SwapVolume, n)
	for i := range out {
		out[i] = SwapVolume{Input: new(big.Int), Output: new(big.Int)}
	}
	return out
}

func recordVolume(v []SwapVolume, in int, amountIn *big.Int, out int, amountOut *big.Int) {
	v[in].Input.Add(v[in].Input, amountIn)
	v[out].Output.Add(v[out].Output, amountOut)
}

func cloneVolumes(v []SwapVolume) []SwapVolume {
	out := make([]SwapVolume, len(v))
	for i, s := range v {
		out[i] = SwapVolume{Input: cloneAmount(s.Input), Output: cloneAmount(s.Output)}
	}
	return out
}

// mintAdminShares routes adminShares to the referral, when it holds a share
// entry in l, and the remainder to the exchange.
func mintAdminShares(l *ShareLedger, admin fees.AdminFees, adminShares *big.Int) (exchange, referral *big.Int) {
	referral = new(big.Int)
	if admin.Referral != nil && l.Registered(admin.Referral.ID) {
		referral, _ = admin.ReferralShare(adminShares)
		l.Mint(admin.Referral.ID, referral)
	}
	exchange = new(big.Int).Sub(adminShares, referral)
	l.Mint(admin.ExchangeID, exchange)
	return exchange, referral
}

// Pool is a tagged union over the supported curve families. Exactly one
// variant pointer is set, matching Kind.
type Pool struct {
	Kind            Kind                 `json:"kind"`
	ConstantProduct *ConstantProductPool `json:"constant_product,omitempty"`
	Stable          *StableSwapPool      `json:"stable,omitempty"`
}

func FromConstantProduct(p *ConstantProductPool) *Pool {
	return &Pool{Kind: KindConstantProduct, ConstantProduct: p}
}

func FromStable(p *StableSwapPool) *Pool {
	return &Pool{Kind: KindStableSwap, Stable: p}
}

// Validate checks that the tag matches the populated variant and that the
// variant's slices, fees and share ledger are consistent.
func (p *Pool) Validate() error {
	switch {
	case p == nil:
		return dexerr.ErrInvalidPool.Wrap("nil pool")
	case p.Kind == KindConstantProduct && p.ConstantProduct != nil && p.Stable == nil:
		return p.ConstantProduct.validate()
	case p.Kind == KindStableSwap && p.Stable != nil && p.ConstantProduct == nil:
		return p.Stable.validate()
	default:
		return dexerr.ErrInvalidPool.Wrapf("kind %q does not match its variant", p.Kind)
	}
}

func validateVolumes(v []SwapVolume, n int) error {
	if len(v) != n {
		return dexerr.ErrInvalidPool.Wrapf("%d volume entries for %d tokens", len(v), n)
	}
	for i, s := range v {
		if s.Input == nil || s.Input.Sign() < 0 || s.Output == nil || s.Output.Sign() < 0 {
			return dexerr.ErrInvalidPool.Wrapf("volume %d is not a non-negative pair", i)
		}
	}
	return nil
}

func (p *Pool) Clone() *Pool {
	out := &Pool{Kind: p.Kind}
	if p.ConstantProduct != nil {
		out.ConstantProduct = p.ConstantProduct.Clone()
	}
	if p.Stable != nil {
		out.Stable = p.Stable.Clone()
	}
	return out
}

func (p *Pool) Tokens() []string {
	if p.Kind == KindStableSwap {
		return append([]string(nil), p.Stable.Tokens...)
	}
	return append([]string(nil), p.ConstantProduct.Tokens...)
}

func (p *Pool) TotalFee() uint32 {
	if p.Kind == KindStableSwap {
		return p.Stable.TotalFee
	}
	return p.ConstantProduct.TotalFee
}

// Shares exposes the pool's share ledger for direct share bookkeeping.
func (p *Pool) Shares() *ShareLedger {
	if p.Kind == KindStableSwap {
		return p.Stable.Shares
	}
	return p.ConstantProduct.Shares
}

// Reserves returns the reserves in token units.
func (p *Pool) Reserves() []*big.Int {
	if p.Kind == KindStableSwap {
		return p.Stable.Reserves()
	}
	return cloneAmounts(p.ConstantProduct.Reserves)
}

func (p *Pool) Volumes() []SwapVolume {
	if p.Kind == KindStableSwap {
		return cloneVolumes(p.Stable.Volumes)
	}
	return cloneVolumes(p.ConstantProduct.Volumes)
}

// Amp returns the current amplification, or zero for constant-product pools.
func (p *Pool) Amp(now uint64) (uint64, error) {
	if p.Kind != KindStableSwap {
		return 0, nil
	}
	return p.Stable.Amp.Factor(now)
}

// SharePrice returns the value of one share scaled by 1e8.
func (p *Pool) SharePrice() *big.Int {
	if p.Kind == KindStableSwap {
		return p.Stable.SharePrice()
	}
	return p.ConstantProduct.SharePrice()
}

func (p *Pool) GetReturn(env CallEnv, tokenIn string, amountIn *big.Int, tokenOut string) (*big.Int, error) {
	if p.Kind == KindStableSwap {
		return p.Stable.GetReturn(env, tokenIn, amountIn, tokenOut)
	}
	return p.ConstantProduct.GetReturn(tokenIn, amountIn, tokenOut)
}

func (p *Pool) Swap(env CallEnv, tokenIn string, amountIn *big.Int, tokenOut string, minOut *big.Int) (SwapResult, error) {
	if p.Kind == KindStableSwap {
		return p.Stable.Swap(env, tokenIn, amountIn, tokenOut, minOut)
	}
	return p.ConstantProduct.Swap(env, tokenIn, amountIn, tokenOut, minOut)
}

func (p *Pool) AddLiquidity(env CallEnv, account string, amounts []*big.Int, minShares *big.Int) (LiquidityResult, error) {
	if p.Kind == KindStableSwap {
		return p.Stable.AddLiquidity(env, account, amounts, minShares)
	}
	return p.ConstantProduct.AddLiquidity(account, amounts, minShares)
}

func (p *Pool) RemoveLiquidity(env CallEnv, account string, shares *big.Int, minAmounts []*big.Int) ([]*big.Int, error) {
	if p.Kind == KindStableSwap {
		return p.Stable.RemoveLiquidity(account, shares, minAmounts)
	}
	return p.ConstantProduct.RemoveLiquidity(account, shares, minAmounts)
}

// RemoveLiquidityByTokens withdraws exact amounts from a stable pool.
func (p *Pool) RemoveLiquidityByTokens(env CallEnv, account string, amounts []*big.Int, maxBurn *big.Int) (LiquidityResult, error) {
	if p.Kind != KindStableSwap {
		return LiquidityResult{}, dexerr.ErrInvalidPool.Wrap("withdrawal by token amounts needs a stable pool")
	}
	return p.Stable.RemoveLiquidityByTokens(env, account, amounts, maxBurn)
}

// PreviewRemoveLiquidity returns what burning shares would pay out.
func (p *Pool) PreviewRemoveLiquidity(shares *big.Int) ([]*big.Int, error) {
	if p.Kind == KindStableSwap {
		return p.Stable.PreviewRemoveLiquidity(shares)
	}
	return p.ConstantProduct.PreviewRemoveLiquidity(shares)
}

// PreviewRemoveLiquidityByTokens returns the shares an exact withdrawal would burn.
func (p *Pool) PreviewRemoveLiquidityByTokens(env CallEnv, amounts []*big.Int) (*big.Int, error) {
	if p.Kind != KindStableSwap {
		return nil, dexerr.ErrInvalidPool.Wrap("withdrawal by token amounts needs a stable pool")
	}
	return p.Stable.PreviewRemoveLiquidityByTokens(env, amounts)
}

func (p *Pool) RampAmp(now, target, stopTS uint64) error {
	if p.Kind != KindStableSwap {
		return dexerr.ErrInvalidPool.Wrap("only stable pools have an amplification")
	}
	next, err := p.Stable.Amp.Ramp(target, stopTS, now)
	if err != nil {
		return err
	}
	p.Stable.Amp = next
	return nil
}

func (p *Pool) StopRampAmp(now uint64) error {
	if p.Kind != KindStableSwap {
		return dexerr.ErrInvalidPool.Wrap("only stable pools have an amplification")
	}
	next, err := p.Stable.Amp.Stop(now)
	if err != nil {
		return err
	}
	p.Stable.Amp = next
	return nil
}

// AmpState returns the ramp state of a stable pool.
func (p *Pool) AmpState() (solver.AmpState, bool) {
	if p.Kind != KindStableSwap {
		return solver.AmpState{}, false
	}
	return p.Stable.Amp, true
}

// Decimals returns per-token decimals; constant-product pools report none.
func (p *Pool) Decimals() []uint8 {
	if p.Kind != KindStableSwap {
		return nil
	}
	return append([]uint8(nil), p.Stable.Decimals...)
}
