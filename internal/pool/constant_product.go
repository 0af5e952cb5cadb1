package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
)

// DefaultInitShares is minted to the first liquidity provider of an empty
// constant-product pool.
var DefaultInitShares = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// ConstantProductPool is a two-token x*y=k pool.
type ConstantProductPool struct {
	Tokens     []string     `json:"tokens"`
	Reserves   []*big.Int   `json:"reserves"`
	TotalFee   uint32       `json:"total_fee"`
	InitShares *big.Int     `json:"init_shares"`
	Shares     *ShareLedger `json:"shares"`
	Volumes    []SwapVolume `json:"volumes"`
}

// NewConstantProductPool creates an empty pool. A nil initShares selects
// DefaultInitShares.
func NewConstantProductPool(tokens []string, totalFee uint32, initShares *big.Int) (*ConstantProductPool, error) {
	if err := checkTokens(tokens, 2, 2); err != nil {
		return nil, err
	}
	if err := fees.ValidateBps(totalFee); err != nil {
		return nil, err
	}
	if initShares == nil {
		initShares = DefaultInitShares
	}
	if err := checkPositive(initShares, "initial shares"); err != nil {
		return nil, err
	}
	return &ConstantProductPool{
		Tokens:     append([]string(nil), tokens...),
		Reserves:   zeroAmounts(len(tokens)),
		TotalFee:   totalFee,
		InitShares: new(big.Int).Set(initShares),
		Shares:     NewShareLedger(),
		Volumes:    newVolumes(len(tokens)),
	}, nil
}

func (p *ConstantProductPool) validate() error {
	if err := checkTokens(p.Tokens, 2, 2); err != nil {
		return err
	}
	if err := fees.ValidateBps(p.TotalFee); err != nil {
		return err
	}
	if err := checkAmounts(p.Reserves, len(p.Tokens), "reserves"); err != nil {
		return dexerr.ErrInvalidPool.Wrap(err.Error())
	}
	if err := checkPositive(p.InitShares, "initial shares"); err != nil {
		return err
	}
	if err := validateVolumes(p.Volumes, len(p.Tokens)); err != nil {
		return err
	}
	return p.Shares.validate()
}

func (p *ConstantProductPool) Clone() *ConstantProductPool {
	return &ConstantProductPool{
		Tokens:     append([]string(nil), p.Tokens...),
		Reserves:   cloneAmounts(p.Reserves),
		TotalFee:   p.TotalFee,
		InitShares: cloneAmount(p.InitShares),
		Shares:     p.Shares.Clone(),
		Volumes:    cloneVolumes(p.Volumes),
	}
}

func toU256(v *big.Int) (*uint256.Int, error) {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, dexerr.ErrArithmeticOverflow.Wrapf("%s does not fit 256 bits", v)
	}
	return u, nil
}

// getReturn computes floor(net*Rout/(Rin+net)) with net = amount*(1-fee),
// keeping the fee fraction exact by scaling everything by FEE_DIVISOR.
func (p *ConstantProductPool) getReturn(in int, amountIn *big.Int, out int) (*big.Int, error) {
	if p.Reserves[in].Sign() == 0 || p.Reserves[out].Sign() == 0 {
		return nil, dexerr.ErrInsufficientLiquidity.Wrap("pool has no reserves")
	}
	amount, err := toU256(amountIn)
	if err != nil {
		return nil, err
	}
	inBal, err := toU256(p.Reserves[in])
	if err != nil {
		return nil, err
	}
	outBal, err := toU256(p.Reserves[out])
	if err != nil {
		return nil, err
	}

	withFee, o1 := new(uint256.Int).MulOverflow(amount, uint256.NewInt(uint64(fees.FeeDivisor-p.TotalFee)))
	num, o2 := new(uint256.Int).MulOverflow(withFee, outBal)
	den, o3 := new(uint256.Int).MulOverflow(inBal, uint256.NewInt(uint64(fees.FeeDivisor)))
	den, o4 := den.AddOverflow(den, withFee)
	if o1 || o2 || o3 || o4 {
		return nil, dexerr.ErrArithmeticOverflow.Wrap("constant product quote")
	}
	return new(uint256.Int).Div(num, den).ToBig(), nil
}

func (p *ConstantProductPool) indices(tokenIn, tokenOut string) (int, int, error) {
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

func (p *ConstantProductPool) GetReturn(tokenIn string, amountIn *big.Int, tokenOut string) (*big.Int, error) {
	in, out, err := p.indices(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if err := checkPositive(amountIn, "amount in"); err != nil {
		return nil, err
	}
	return p.getReturn(in, amountIn, out)
}

// invariant returns floor(sqrt(x*y)).
func (p *ConstantProductPool) invariant() (*big.Int, error) {
	x, err := toU256(p.Reserves[0])
	if err != nil {
		return nil, err
	}
	y, err := toU256(p.Reserves[1])
	if err != nil {
		return nil, err
	}
	k, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, dexerr.ErrArithmeticOverflow.Wrap("reserve product")
	}
	return new(uint256.Int).Sqrt(k).ToBig(), nil
}

// Swap trades amountIn of tokenIn for tokenOut. The admin part of the fee is
// minted as new shares, sized by the invariant growth the fee caused.
func (p *ConstantProductPool) Swap(env CallEnv, tokenIn string, amountIn *big.Int, tokenOut string, minOut *big.Int) (SwapResult, error) {
	in, out, err := p.indices(tokenIn, tokenOut)
	if err != nil {
		return SwapResult{}, err
	}
	if err := checkPositive(amountIn, "amount in"); err != nil {
		return SwapResult{}, err
	}
	if minOut == nil {
		minOut = new(big.Int)
	}
	if err := checkAmount(minOut, "min amount out"); err != nil {
		return SwapResult{}, err
	}
	amountOut, err := p.getReturn(in, amountIn, out)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.Cmp(minOut) < 0 {
		return SwapResult{}, dexerr.ErrSlippageExceeded.Wrapf("got %s, want at least %s", amountOut, minOut)
	}
	newIn := new(big.Int).Add(p.Reserves[in], amountIn)
	if err := checkReserve(newIn); err != nil {
		return SwapResult{}, err
	}

	prevInv, err := p.invariant()
	if err != nil {
		return SwapResult{}, err
	}
	p.Reserves[in] = newIn
	p.Reserves[out] = new(big.Int).Sub(p.Reserves[out], amountOut)
	newInv, err := p.invariant()
	if err != nil {
		return SwapResult{}, err
	}
	if newInv.Cmp(prevInv) < 0 {
		return SwapResult{}, dexerr.ErrInvariantViolated.Wrapf("invariant fell from %s to %s", prevInv, newInv)
	}

	fee := fees.New(p.TotalFee, env.Admin)
	res := SwapResult{
		AmountOut:      amountOut,
		Fee:            fee.TradeFee(amountIn),
		FeeToken:       tokenIn,
		ExchangeShares: new(big.Int),
		ReferralShares: new(big.Int),
	}
	res.AdminFee = fee.AdminTradeFee(res.Fee)

	supply := p.Shares.TotalSupply()
	growth := new(big.Int).Sub(newInv, prevInv)
	if env.Admin.AdminFeeBps > 0 && growth.Sign() > 0 && supply.Sign() > 0 {
		num := new(big.Int).Mul(growth, supply)
		num.Mul(num, big.NewInt(int64(env.Admin.AdminFeeBps)))
		den := new(big.Int).Mul(newInv, fees.Divisor())
		adminShares := num.Quo(num, den)
		if adminShares.Sign() > 0 {
			res.ExchangeShares, res.ReferralShares = mintAdminShares(p.Shares, env.Admin, adminShares)
		}
	}
	recordVolume(p.Volumes, in, amountIn, out, amountOut)
	return res, nil
}

// AddLiquidity deposits amounts in the pool's current ratio. The limiting token
// sets the minted shares; only the proportional part of every amount is used.
func (p *ConstantProductPool) AddLiquidity(account string, amounts []*big.Int, minShares *big.Int) (LiquidityResult, error) {
	if err := checkAmounts(amounts, len(p.Tokens), "amounts"); err != nil {
		return LiquidityResult{}, err
	}
	for _, a := range amounts {
		if a.Sign() == 0 {
			return LiquidityResult{}, dexerr.ErrInvalidAmount.Wrap("every token must be supplied")
		}
	}
	if minShares == nil {
		minShares = new(big.Int)
	}

	supply := p.Shares.TotalSupply()
	var shares *big.Int
	used := make([]*big.Int, len(amounts))
	if supply.Sign() == 0 {
		shares = new(big.Int).Set(p.InitShares)
		for i, a := range amounts {
			used[i] = new(big.Int).Set(a)
		}
	} else {
		for i, a := range amounts {
			fair, err := mulDiv(a, supply, p.Reserves[i])
			if err != nil {
				return LiquidityResult{}, dexerr.ErrInsufficientLiquidity.Wrapf("reserve %d is empty", i)
			}
			if shares == nil || fair.Cmp(shares) < 0 {
				shares = fair
			}
		}
		if shares.Sign() == 0 {
			return LiquidityResult{}, dexerr.ErrInvalidAmount.Wrap("deposit too small to mint shares")
		}
		for i := range amounts {
			v, err := mulDivCeil(p.Reserves[i], shares, supply)
			if err != nil {
				return LiquidityResult{}, err
			}
			used[i] = v
		}
	}
	if shares.Cmp(minShares) < 0 {
		return LiquidityResult{}, dexerr.ErrSlippageExceeded.Wrapf("minted %s shares, want at least %s", shares, minShares)
	}

	next := make([]*big.Int, len(p.Reserves))
	for i := range p.Reserves {
		next[i] = new(big.Int).Add(p.Reserves[i], used[i])
		if err := checkReserve(next[i]); err != nil {
			return LiquidityResult{}, err
		}
	}
	p.Reserves = next
	p.Shares.Mint(account, shares)
	return LiquidityResult{
		Shares:         new(big.Int).Set(shares),
		Amounts:        used,
		FeeShares:      new(big.Int),
		ExchangeShares: new(big.Int),
		ReferralShares: new(big.Int),
	}, nil
}

// RemoveLiquidity burns shares for a pro-rata slice of every reserve.
func (p *ConstantProductPool) RemoveLiquidity(account string, shares *big.Int, minAmounts []*big.Int) ([]*big.Int, error) {
	amounts, err := proRata(p.Reserves, p.Shares, account, shares, minAmounts)
	if err != nil {
		return nil, err
	}
	if err := p.Shares.Burn(account, shares); err != nil {
		return nil, err
	}
	for i := range p.Reserves {
		p.Reserves[i] = new(big.Int).Sub(p.Reserves[i], amounts[i])
	}
	return amounts, nil
}

// proRata returns floor(reserve*shares/supply) per reserve after checking the
// caller's balance and minimums.
func proRata(reserves []*big.Int, l *ShareLedger, account string, shares *big.Int, minAmounts []*big.Int) ([]*big.Int, error) {
	if err := checkPositive(shares, "shares"); err != nil {
		return nil, err
	}
	if minAmounts == nil {
		minAmounts = zeroAmounts(len(reserves))
	}
	if err := checkAmounts(minAmounts, len(reserves), "min amounts"); err != nil {
		return nil, err
	}
	if bal := l.BalanceOf(account); bal.Cmp(shares) < 0 {
		return nil, dexerr.ErrInsufficientShares.Wrapf("account %q holds %s, needs %s", account, bal, shares)
	}
	amounts, err := shareOf(reserves, l.TotalSupply(), shares)
	if err != nil {
		return nil, err
	}
	for i, v := range amounts {
		if v.Cmp(minAmounts[i]) < 0 {
			return nil, dexerr.ErrSlippageExceeded.Wrapf("token %d: got %s, want at least %s", i, v, minAmounts[i])
		}
	}
	return amounts, nil
}

func shareOf(reserves []*big.Int, supply, shares *big.Int) ([]*big.Int, error) {
	if err := checkPositive(shares, "shares"); err != nil {
		return nil, err
	}
	if shares.Cmp(supply) > 0 {
		return nil, dexerr.ErrInsufficientShares.Wrapf("supply is %s, asked for %s", supply, shares)
	}
	amounts := make([]*big.Int, len(reserves))
	for i, r := range reserves {
		v, err := mulDiv(r, shares, supply)
		if err != nil {
			return nil, err
		}
		amounts[i] = v
	}
	return amounts, nil
}

// PreviewRemoveLiquidity returns the reserves shares would redeem.
func (p *ConstantProductPool) PreviewRemoveLiquidity(shares *big.Int) ([]*big.Int, error) {
	return shareOf(p.Reserves, p.Shares.TotalSupply(), shares)
}

// SharePrice is the reserve sum per share, scaled by 1e8.
func (p *ConstantProductPool) SharePrice() *big.Int {
	return sharePrice(p.Reserves, p.Shares.TotalSupply())
}

var sharePriceScale = big.NewInt(100_000_000)

func sharePrice(reserves []*big.Int, supply *big.Int) *big.Int {
	if supply.Sign() == 0 {
		return new(big.Int).Set(sharePriceScale)
	}
	sum := new(big.Int)
	for _, r := range reserves {
		sum.Add(sum, r)
	}
	sum.Mul(sum, sharePriceScale)
	return sum.Quo(sum, supply)
}
