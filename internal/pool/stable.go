package pool

import (
	"errors"
	"math/big"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/solver"
)

const (
	MinDecimals    uint8 = 1
	MaxDecimals    uint8 = 24
	TargetDecimals uint8 = 18

	MinStableTokens = 2
	MaxStableTokens = 8
)

// MinReserve is the smallest comparable-unit balance a stable pool may be
// left with by a swap or withdrawal.
var MinReserve = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)

var pow10 = func() [MaxDecimals + 1]*big.Int {
	var out [MaxDecimals + 1]*big.Int
	for i := range out {
		out[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil)
	}
	return out
}()

// StableSwapPool is an n-token StableSwap pool. CAmounts hold reserves
// rescaled to TargetDecimals so tokens of different precision compare 1:1.
type StableSwapPool struct {
	Tokens   []string        `json:"tokens"`
	Decimals []uint8         `json:"decimals"`
	CAmounts []*big.Int      `json:"c_amounts"`
	TotalFee uint32          `json:"total_fee"`
	Amp      solver.AmpState `json:"amp"`
	Shares   *ShareLedger    `json:"shares"`
	Volumes  []SwapVolume    `json:"volumes"`
}

func NewStableSwapPool(tokens []string, decimals []uint8, totalFee uint32, amp uint64) (*StableSwapPool, error) {
	if err := checkTokens(tokens, MinStableTokens, MaxStableTokens); err != nil {
		return nil, err
	}
	if len(decimals) != len(tokens) {
		return nil, dexerr.ErrInvalidDecimals.Wrapf("%d decimals for %d tokens", len(decimals), len(tokens))
	}
	for i, d := range decimals {
		if d < MinDecimals || d > MaxDecimals {
			return nil, dexerr.ErrInvalidDecimals.Wrapf("token %q has %d decimals", tokens[i], d)
		}
	}
	if err := fees.ValidateBps(totalFee); err != nil {
		return nil, err
	}
	ampState, err := solver.NewAmpState(amp)
	if err != nil {
		return nil, err
	}
	return &StableSwapPool{
		Tokens:   append([]string(nil), tokens...),
		Decimals: append([]uint8(nil), decimals...),
		CAmounts: zeroAmounts(len(tokens)),
		TotalFee: totalFee,
		Amp:      ampState,
		Shares:   NewShareLedger(),
		Volumes:  newVolumes(len(tokens)),
	}, nil
}

func (p *StableSwapPool) validate() error {
	if err := checkTokens(p.Tokens, MinStableTokens, MaxStableTokens); err != nil {
		return err
	}
	if len(p.Decimals) != len(p.Tokens) {
		return dexerr.ErrInvalidDecimals.Wrapf("%d decimals for %d tokens", len(p.Decimals), len(p.Tokens))
	}
	for i, d := range p.Decimals {
		if d < MinDecimals || d > MaxDecimals {
			return dexerr.ErrInvalidDecimals.Wrapf("token %q has %d decimals", p.Tokens[i], d)
		}
	}
	if err := fees.ValidateBps(p.TotalFee); err != nil {
		return err
	}
	if err := p.Amp.Validate(); err != nil {
		return err
	}
	if err := checkAmounts(p.CAmounts, len(p.Tokens), "c_amounts"); err != nil {
		return dexerr.ErrInvalidPool.Wrap(err.Error())
	}
	if err := validateVolumes(p.Volumes, len(p.Tokens)); err != nil {
		return err
	}
	return p.Shares.validate()
}

func (p *StableSwapPool) Clone() *StableSwapPool {
	return &StableSwapPool{
		Tokens:   append([]string(nil), p.Tokens...),
		Decimals: append([]uint8(nil), p.Decimals...),
		CAmounts: cloneAmounts(p.CAmounts),
		TotalFee: p.TotalFee,
		Amp:      p.Amp,
		Shares:   p.Shares.Clone(),
		Volumes:  cloneVolumes(p.Volumes),
	}
}

// toComparable rescales a token amount to TargetDecimals, flooring when the
// token is more precise.
func (p *StableSwapPool) toComparable(i int, amount *big.Int) *big.Int {
	d := p.Decimals[i]
	if d <= TargetDecimals {
		return new(big.Int).Mul(amount, pow10[TargetDecimals-d])
	}
	return new(big.Int).Quo(amount, pow10[d-TargetDecimals])
}

// toComparableCeil rounds up instead, for amounts leaving the pool.
func (p *StableSwapPool) toComparableCeil(i int, amount *big.Int) *big.Int {
	d := p.Decimals[i]
	if d <= TargetDecimals {
		return new(big.Int).Mul(amount, pow10[TargetDecimals-d])
	}
	c, _ := mulDivCeil(amount, big.NewInt(1), pow10[d-TargetDecimals])
	return c
}

func (p *StableSwapPool) fromComparable(i int, c *big.Int) *big.Int {
	d := p.Decimals[i]
	if d <= TargetDecimals {
		return new(big.Int).Quo(c, pow10[TargetDecimals-d])
	}
	return new(big.Int).Mul(c, pow10[d-TargetDecimals])
}

// Reserves converts the comparable balances back to token units.
func (p *StableSwapPool) Reserves() []*big.Int {
	out := make([]*big.Int, len(p.CAmounts))
	for i, c := range p.CAmounts {
		out[i] = p.fromComparable(i, c)
	}
	return out
}

func (p *StableSwapPool) math(now uint64) (stableMath, error) {
	amp, err := p.Amp.Factor(now)
	if err != nil {
		return stableMath{}, err
	}
	return stableMath{amp: amp}, nil
}

func (p *StableSwapPool) indices(tokenIn, tokenOut string) (int, int, error) {
	if tokenIn == tokenOut {
		return 0, 0, dexerr.ErrSameToken.Wrapf("token %q", tokenIn)
	}
	in, err := indexOf(p.Tokens, tokenIn)
	if err != nil {
		return 0, 0, err
	}
	out, err := indexOf(p.Tokens, tokenOut)
	if err != nil {
		return 0, 0, err
	}
	return in, out, nil
}

func (p *StableSwapPool) checkMinReserve(i int, c *big.Int) error {
	if c.Cmp(MinReserve) < 0 {
		return dexerr.ErrMinReserve.Wrapf("token %q would keep %s comparable units", p.Tokens[i], c)
	}
	return nil
}

func (p *StableSwapPool) quote(env CallEnv, tokenIn string, amountIn *big.Int, tokenOut string) (int, int, stableSwap, stableMath, error) {
	in, out, err := p.indices(tokenIn, tokenOut)
	if err != nil {
		return 0, 0, stableSwap{}, stableMath{}, err
	}
	if err := checkPositive(amountIn, "amount in"); err != nil {
		return 0, 0, stableSwap{}, stableMath{}, err
	}
	for _, c := range p.CAmounts {
		if c.Sign() == 0 {
			return 0, 0, stableSwap{}, stableMath{}, dexerr.ErrInsufficientLiquidity.Wrap("pool has an empty reserve")
		}
	}
	cIn := p.toComparable(in, amountIn)
	if cIn.Sign() == 0 {
		return 0, 0, stableSwap{}, stableMath{}, dexerr.ErrInvalidAmount.Wrap("amount in rounds to zero")
	}
	m, err := p.math(env.Now)
	if err != nil {
		return 0, 0, stableSwap{}, stableMath{}, err
	}
	res, err := m.swapTo(in, cIn, out, p.CAmounts, fees.New(p.TotalFee, env.Admin))
	if err != nil {
		return 0, 0, stableSwap{}, stableMath{}, err
	}
	return in, out, res, m, nil
}

func (p *StableSwapPool) GetReturn(env CallEnv, tokenIn string, amountIn *big.Int, tokenOut string) (*big.Int, error) {
	_, out, res, _, err := p.quote(env, tokenIn, amountIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return p.fromComparable(out, res.swapped), nil
}

// Swap trades along the invariant. The admin fee stays in the pool as a
// fee-free single-sided deposit whose shares go to the exchange and referral.
func (p *StableSwapPool) Swap(env CallEnv, tokenIn string, amountIn *big.Int, tokenOut string, minOut *big.Int) (SwapResult, error) {
	if minOut == nil {
		minOut = new(big.Int)
	}
	if err := checkAmount(minOut, "min amount out"); err != nil {
		return SwapResult{}, err
	}
	in, out, res, m, err := p.quote(env, tokenIn, amountIn, tokenOut)
	if err != nil {
		return SwapResult{}, err
	}
	amountOut := p.fromComparable(out, res.swapped)
	if amountOut.Cmp(minOut) < 0 {
		return SwapResult{}, dexerr.ErrSlippageExceeded.Wrapf("got %s, want at least %s", amountOut, minOut)
	}
	if err := p.checkMinReserve(out, res.newDst); err != nil {
		return SwapResult{}, err
	}

	p.CAmounts[in] = res.newSrc
	p.CAmounts[out] = res.newDst
	recordVolume(p.Volumes, in, amountIn, out, amountOut)

	result := SwapResult{
		AmountOut:      amountOut,
		Fee:            p.fromComparable(out, res.tradeFee),
		FeeToken:       tokenOut,
		AdminFee:       p.fromComparable(out, res.adminFee),
		ExchangeShares: new(big.Int),
		ReferralShares: new(big.Int),
	}
	if res.adminFee.Sign() > 0 {
		result.ExchangeShares, result.ReferralShares, err = p.depositAdminFee(m, env.Admin, out, res.adminFee)
		if err != nil {
			return SwapResult{}, err
		}
	}
	return result, nil
}

func (p *StableSwapPool) depositAdminFee(m stableMath, admin fees.AdminFees, token int, amount *big.Int) (*big.Int, *big.Int, error) {
	supply := p.Shares.TotalSupply()
	shares := new(big.Int)
	if supply.Sign() > 0 {
		deposit := zeroAmounts(len(p.CAmounts))
		deposit[token] = amount
		minted, _, err := m.lpForDeposit(deposit, p.CAmounts, supply, fees.Zero())
		switch {
		case errors.Is(err, dexerr.ErrInvariantViolated):
			// Too small to move D; the fee accrues to every holder.
		case err != nil:
			return nil, nil, err
		default:
			shares = minted
		}
	}
	p.CAmounts[token] = new(big.Int).Add(p.CAmounts[token], amount)
	if shares.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}
	exchange, referral := mintAdminShares(p.Shares, admin, shares)
	return exchange, referral, nil
}

// AddLiquidity deposits any combination of tokens. The first deposit must
// include every token and mints D shares without a fee.
func (p *StableSwapPool) AddLiquidity(env CallEnv, account string, amounts []*big.Int, minShares *big.Int) (LiquidityResult, error) {
	if err := checkAmounts(amounts, len(p.Tokens), "amounts"); err != nil {
		return LiquidityResult{}, err
	}
	if minShares == nil {
		minShares = new(big.Int)
	}
	deposit := make([]*big.Int, len(amounts))
	anyPositive := false
	for i, a := range amounts {
		deposit[i] = p.toComparable(i, a)
		if deposit[i].Sign() > 0 {
			anyPositive = true
		}
	}
	if !anyPositive {
		return LiquidityResult{}, dexerr.ErrInvalidAmount.Wrap("nothing to deposit")
	}
	m, err := p.math(env.Now)
	if err != nil {
		return LiquidityResult{}, err
	}

	supply := p.Shares.TotalSupply()
	var minted, feePart *big.Int
	if supply.Sign() == 0 {
		for i, c := range deposit {
			if c.Sign() == 0 {
				return LiquidityResult{}, dexerr.ErrInvalidAmount.Wrapf("initial deposit is missing %q", p.Tokens[i])
			}
		}
		if minted, err = solver.ComputeD(deposit, m.amp); err != nil {
			return LiquidityResult{}, err
		}
		feePart = new(big.Int)
	} else {
		minted, feePart, err = m.lpForDeposit(deposit, p.CAmounts, supply, fees.New(p.TotalFee, env.Admin))
		if err != nil {
			return LiquidityResult{}, err
		}
	}
	if minted.Sign() == 0 {
		return LiquidityResult{}, dexerr.ErrInvalidAmount.Wrap("deposit too small to mint shares")
	}
	if minted.Cmp(minShares) < 0 {
		return LiquidityResult{}, dexerr.ErrSlippageExceeded.Wrapf("minted %s shares, want at least %s", minted, minShares)
	}

	for i, c := range deposit {
		p.CAmounts[i] = new(big.Int).Add(p.CAmounts[i], c)
	}
	p.Shares.Mint(account, minted)
	res := LiquidityResult{
		Shares:         minted,
		Amounts:        cloneAmounts(amounts),
		FeeShares:      feePart,
		ExchangeShares: new(big.Int),
		ReferralShares: new(big.Int),
	}
	res.ExchangeShares, res.ReferralShares = p.mintFeeShares(env.Admin, feePart)
	return res, nil
}

// mintFeeShares hands the admin cut of an imbalance fee to the exchange and
// referral; the rest stays with every holder.
func (p *StableSwapPool) mintFeeShares(admin fees.AdminFees, feePart *big.Int) (*big.Int, *big.Int) {
	adminShares := fees.Ratio(feePart, admin.AdminFeeBps, fees.FeeDivisor)
	if adminShares.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	return mintAdminShares(p.Shares, admin, adminShares)
}

// RemoveLiquidity burns shares for a pro-rata, fee-free slice of every token.
func (p *StableSwapPool) RemoveLiquidity(account string, shares *big.Int, minAmounts []*big.Int) ([]*big.Int, error) {
	if minAmounts == nil {
		minAmounts = zeroAmounts(len(p.Tokens))
	}
	if err := checkAmounts(minAmounts, len(p.Tokens), "min amounts"); err != nil {
		return nil, err
	}
	cOut, err := proRata(p.CAmounts, p.Shares, account, shares, nil)
	if err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(cOut))
	for i, c := range cOut {
		if err := p.checkMinReserve(i, new(big.Int).Sub(p.CAmounts[i], c)); err != nil {
			return nil, err
		}
		amounts[i] = p.fromComparable(i, c)
		if amounts[i].Cmp(minAmounts[i]) < 0 {
			return nil, dexerr.ErrSlippageExceeded.Wrapf("token %q: got %s, want at least %s", p.Tokens[i], amounts[i], minAmounts[i])
		}
	}
	if err := p.Shares.Burn(account, shares); err != nil {
		return nil, err
	}
	for i, c := range cOut {
		p.CAmounts[i] = new(big.Int).Sub(p.CAmounts[i], c)
	}
	return amounts, nil
}

// withdrawQuote prices an exact-amount withdrawal without touching state.
func (p *StableSwapPool) withdrawQuote(env CallEnv, amounts []*big.Int) (withdraw []*big.Int, burn, feePart *big.Int, err error) {
	if err := checkAmounts(amounts, len(p.Tokens), "amounts"); err != nil {
		return nil, nil, nil, err
	}
	supply := p.Shares.TotalSupply()
	if supply.Sign() == 0 {
		return nil, nil, nil, dexerr.ErrInsufficientLiquidity.Wrap("pool has no shares")
	}
	withdraw = make([]*big.Int, len(amounts))
	for i, a := range amounts {
		withdraw[i] = p.toComparableCeil(i, a)
		rest := new(big.Int).Sub(p.CAmounts[i], withdraw[i])
		if rest.Sign() < 0 {
			return nil, nil, nil, dexerr.ErrInsufficientLiquidity.Wrapf("token %q reserve is below %s", p.Tokens[i], a)
		}
		if err := p.checkMinReserve(i, rest); err != nil {
			return nil, nil, nil, err
		}
	}
	m, err := p.math(env.Now)
	if err != nil {
		return nil, nil, nil, err
	}
	burn, feePart, err = m.lpForWithdraw(withdraw, p.CAmounts, supply, fees.New(p.TotalFee, env.Admin))
	if err != nil {
		return nil, nil, nil, err
	}
	return withdraw, burn, feePart, nil
}

// PreviewRemoveLiquidityByTokens returns the shares an exact withdrawal burns.
func (p *StableSwapPool) PreviewRemoveLiquidityByTokens(env CallEnv, amounts []*big.Int) (*big.Int, error) {
	_, burn, _, err := p.withdrawQuote(env, amounts)
	return burn, err
}

// RemoveLiquidityByTokens withdraws exactly amounts, burning at most maxBurn
// shares. Imbalanced withdrawals pay the normalized fee.
func (p *StableSwapPool) RemoveLiquidityByTokens(env CallEnv, account string, amounts []*big.Int, maxBurn *big.Int) (LiquidityResult, error) {
	if err := checkAmount(maxBurn, "max burn"); err != nil {
		return LiquidityResult{}, err
	}
	withdraw, burn, feePart, err := p.withdrawQuote(env, amounts)
	if err != nil {
		return LiquidityResult{}, err
	}
	if burn.Cmp(maxBurn) > 0 {
		return LiquidityResult{}, dexerr.ErrSlippageExceeded.Wrapf("would burn %s shares, allowed %s", burn, maxBurn)
	}
	if err := p.Shares.Burn(account, burn); err != nil {
		return LiquidityResult{}, err
	}
	for i, c := range withdraw {
		p.CAmounts[i] = new(big.Int).Sub(p.CAmounts[i], c)
	}
	res := LiquidityResult{
		Shares:    burn,
		Amounts:   cloneAmounts(amounts),
		FeeShares: feePart,
	}
	res.ExchangeShares, res.ReferralShares = p.mintFeeShares(env.Admin, feePart)
	return res, nil
}

// PreviewRemoveLiquidity returns the token amounts shares would redeem.
func (p *StableSwapPool) PreviewRemoveLiquidity(shares *big.Int) ([]*big.Int, error) {
	cOut, err := shareOf(p.CAmounts, p.Shares.TotalSupply(), shares)
	if err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(cOut))
	for i, c := range cOut {
		if err := p.checkMinReserve(i, new(big.Int).Sub(p.CAmounts[i], c)); err != nil {
			return nil, err
		}
		amounts[i] = p.fromComparable(i, c)
	}
	return amounts, nil
}

// SharePrice is the comparable reserve sum per share, scaled by 1e8.
func (p *StableSwapPool) SharePrice() *big.Int {
	return sharePrice(p.CAmounts, p.Shares.TotalSupply())
}
