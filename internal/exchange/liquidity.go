package exchange

import (
	"math/big"

	"go.uber.org/zap"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/metrics"
	"swapCore/internal/model"
	"swapCore/internal/pool"
)

// AddSimplePool creates a constant-product pool. Anyone may call it.
func (e *Exchange) AddSimplePool(account string, tokens []string, fee uint32) (uint64, error) {
	var id uint64
	err := e.mutate("add_simple_pool", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if err := t.st.checkTokens(tokens); err != nil {
			return err
		}
		p, err := pool.NewConstantProductPool(tokens, fee, t.st.InitShares)
		if err != nil {
			return err
		}
		id, err = t.addPool(pool.FromConstantProduct(p))
		return err
	})
	return id, err
}

// AddStablePool creates a stable-invariant pool. Owner only.
func (e *Exchange) AddStablePool(account string, tokens []string, decimals []uint8, fee uint32, amp uint64) (uint64, error) {
	var id uint64
	err := e.mutate("add_stable_pool", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		if err := t.st.checkTokens(tokens); err != nil {
			return err
		}
		p, err := pool.NewStableSwapPool(tokens, decimals, fee, amp)
		if err != nil {
			return err
		}
		id, err = t.addPool(pool.FromStable(p))
		return err
	})
	return id, err
}

func (t *tx) addPool(p *pool.Pool) (uint64, error) {
	if err := fees.ValidateBps(p.TotalFee()); err != nil {
		return 0, err
	}
	p.Shares().Register(t.st.ExchangeID)
	id, err := t.st.Pools.Add(p)
	if err != nil {
		return 0, err
	}
	t.audit(model.AuditRecord{
		Kind:   model.AuditPoolCreated,
		PoolID: poolRef(id),
		Tokens: p.Tokens(),
		Detail: string(p.Kind),
	})
	t.info("pool created", zap.Uint64("pool_id", id), zap.String("kind", string(p.Kind)), zap.Strings("tokens", p.Tokens()), zap.Uint32("fee", p.TotalFee()))
	return id, nil
}

// openPool checks freezes and returns a working copy of pool id.
func (t *tx) openPool(id uint64) (*pool.Pool, error) {
	if err := t.st.CheckPool(id); err != nil {
		return nil, err
	}
	p, err := t.st.Pools.Get(id)
	if err != nil {
		return nil, err
	}
	if err := t.st.checkTokens(p.Tokens()); err != nil {
		return nil, err
	}
	return p, nil
}

// AddLiquidity moves amounts from the caller's deposits into pool id and
// mints shares. Constant-product pools take only the proportional part.
func (e *Exchange) AddLiquidity(account string, id uint64, amounts []*big.Int, minShares *big.Int, referral string) (pool.LiquidityResult, error) {
	var out pool.LiquidityResult
	err := e.mutate("add_liquidity", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if _, err := t.st.Ledger.Account(account); err != nil {
			return err
		}
		p, err := t.openPool(id)
		if err != nil {
			return err
		}
		res, err := p.AddLiquidity(t.env(referral), account, amounts, minShares)
		if err != nil {
			return err
		}
		tokens := p.Tokens()
		for i, a := range res.Amounts {
			if a.Sign() == 0 {
				continue
			}
			if err := t.st.Ledger.Withdraw(account, tokens[i], a); err != nil {
				return err
			}
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.liquidity(model.AuditAddLiquidity, id, tokens, res, referral)
		out = res
		return nil
	})
	return out, err
}

// RemoveLiquidity burns shares for a pro-rata slice of every reserve, credited
// to the caller's deposits.
func (e *Exchange) RemoveLiquidity(account string, id uint64, shares *big.Int, minAmounts []*big.Int) ([]*big.Int, error) {
	var out []*big.Int
	err := e.mutate("remove_liquidity", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if _, err := t.st.Ledger.Account(account); err != nil {
			return err
		}
		p, err := t.openPool(id)
		if err != nil {
			return err
		}
		amounts, err := p.RemoveLiquidity(t.env(""), account, shares, minAmounts)
		if err != nil {
			return err
		}
		if err := t.credit(account, p.Tokens(), amounts); err != nil {
			return err
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.liquidity(model.AuditRemoveLiquidity, id, p.Tokens(), pool.LiquidityResult{Shares: shares, Amounts: amounts}, "")
		out = amounts
		return nil
	})
	return out, err
}

// RemoveLiquidityByTokens withdraws exact amounts from a stable pool, burning
// at most maxBurn shares. It returns the shares burned.
func (e *Exchange) RemoveLiquidityByTokens(account string, id uint64, amounts []*big.Int, maxBurn *big.Int, referral string) (*big.Int, error) {
	var out *big.Int
	err := e.mutate("remove_liquidity_by_tokens", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if _, err := t.st.Ledger.Account(account); err != nil {
			return err
		}
		p, err := t.openPool(id)
		if err != nil {
			return err
		}
		res, err := p.RemoveLiquidityByTokens(t.env(referral), account, amounts, maxBurn)
		if err != nil {
			return err
		}
		if err := t.credit(account, p.Tokens(), res.Amounts); err != nil {
			return err
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.liquidity(model.AuditRemoveLiquidity, id, p.Tokens(), res, referral)
		out = res.Shares
		return nil
	})
	return out, err
}

func (t *tx) credit(account string, tokens []string, amounts []*big.Int) error {
	for i, a := range amounts {
		if a.Sign() == 0 {
			continue
		}
		if err := t.st.Ledger.Credit(account, tokens[i], a); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) liquidity(kind string, id uint64, tokens []string, res pool.LiquidityResult, referral string) {
	t.audit(model.AuditRecord{
		Kind:           kind,
		PoolID:         poolRef(id),
		Tokens:         tokens,
		Amounts:        amountStrings(res.Amounts),
		Shares:         amountString(res.Shares),
		Fee:            amountString(res.FeeShares),
		ExchangeShares: amountString(res.ExchangeShares),
		ReferralShares: amountString(res.ReferralShares),
		Referral:       referral,
	})
	t.info(kind,
		zap.Uint64("pool_id", id),
		zap.Strings("amounts", amountStrings(res.Amounts)),
		zap.String("shares", amountString(res.Shares)),
		zap.String("fee_shares", amountString(res.FeeShares)),
	)
	op := "add"
	if kind == model.AuditRemoveLiquidity {
		op = "remove"
	}
	t.observe(func(m *metrics.Metrics) { m.ObserveLiquidity(id, op) })
}

// RegisterShares opens a zero share balance for account in pool id.
func (e *Exchange) RegisterShares(account string, id uint64) error {
	return e.mutate("register_shares", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		p, err := t.st.Pools.Get(id)
		if err != nil {
			return err
		}
		p.Shares().Register(account)
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.audit(model.AuditRecord{Kind: model.AuditShares, PoolID: poolRef(id), Detail: "register"})
		t.info("shares registered", zap.Uint64("pool_id", id))
		return nil
	})
}

// UnregisterShares drops an empty share balance.
func (e *Exchange) UnregisterShares(account string, id uint64) error {
	return e.mutate("unregister_shares", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		p, err := t.st.Pools.Get(id)
		if err != nil {
			return err
		}
		if err := p.Shares().Unregister(account); err != nil {
			return err
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.audit(model.AuditRecord{Kind: model.AuditShares, PoolID: poolRef(id), Detail: "unregister"})
		t.info("shares unregistered", zap.Uint64("pool_id", id))
		return nil
	})
}

// TransferShares moves shares of pool id to a registered receiver.
func (e *Exchange) TransferShares(account string, id uint64, to string, amount *big.Int) error {
	return e.mutate("transfer_shares", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return dexerr.ErrInvalidAmount.Wrap("share transfer must be positive")
		}
		p, err := t.openPool(id)
		if err != nil {
			return err
		}
		if err := p.Shares().Transfer(account, to, amount); err != nil {
			return err
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.audit(model.AuditRecord{Kind: model.AuditShares, PoolID: poolRef(id), Shares: amount.String(), Detail: "transfer to " + to})
		t.info("shares transferred", zap.Uint64("pool_id", id), zap.String("to", to), zap.String("shares", amount.String()))
		return nil
	})
}

// DonateShares gives shares of pool id to the exchange account. A nil amount
// donates the whole balance; unregister then drops the emptied entry.
func (e *Exchange) DonateShares(account string, id uint64, amount *big.Int, unregister bool) error {
	return e.mutate("donate_shares", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		p, err := t.st.Pools.Get(id)
		if err != nil {
			return err
		}
		l := p.Shares()
		if amount == nil {
			amount = l.BalanceOf(account)
		}
		if amount.Sign() <= 0 {
			return dexerr.ErrInvalidAmount.Wrap("nothing to donate")
		}
		l.Register(t.st.ExchangeID)
		if err := l.Transfer(account, t.st.ExchangeID, amount); err != nil {
			return err
		}
		if unregister {
			if err := l.Unregister(account); err != nil {
				return err
			}
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.audit(model.AuditRecord{Kind: model.AuditDonate, PoolID: poolRef(id), Shares: amount.String(), Detail: "to " + t.st.ExchangeID})
		t.info("shares donated", zap.Uint64("pool_id", id), zap.String("shares", amount.String()))
		return nil
	})
}
