package exchange

import (
	"math/big"
	"sort"

	"swapCore/internal/dexerr"
	"swapCore/internal/ledger"
	"swapCore/internal/model"
	"swapCore/internal/pool"
	"swapCore/internal/router"
)

func (e *Exchange) Metadata() model.Metadata {
	var out model.Metadata
	_ = e.view(func(st *State, _ uint64) error {
		refs := make(map[string]uint32, len(st.Referrals))
		for k, v := range st.Referrals {
			refs[k] = v
		}
		out = model.Metadata{
			Owner:        st.Owner,
			ExchangeID:   st.ExchangeID,
			AdminFeeBps:  st.AdminFeeBps,
			Paused:       st.Paused,
			PoolCount:    st.Pools.Len(),
			Referrals:    refs,
			FrozenTokens: sortedTokens(st.FrozenTokens),
			FrozenPools:  sortedPools(st.FrozenPools),
		}
		return nil
	})
	return out
}

// Pool describes pool id.
func (e *Exchange) Pool(id uint64) (model.PoolInfo, error) {
	var out model.PoolInfo
	err := e.view(func(st *State, now uint64) error {
		p, err := st.Pools.View(id)
		if err != nil {
			return err
		}
		out, err = poolInfo(st, id, p, now)
		return err
	})
	return out, err
}

// Pools lists up to limit pools starting at from. A zero limit lists all.
func (e *Exchange) Pools(from, limit uint64) ([]model.PoolInfo, error) {
	var out []model.PoolInfo
	err := e.view(func(st *State, now uint64) error {
		for i, p := range st.Pools.List(from, limit) {
			info, err := poolInfo(st, from+uint64(i), p, now)
			if err != nil {
				return err
			}
			out = append(out, info)
		}
		return nil
	})
	return out, err
}

func poolInfo(st *State, id uint64, p *pool.Pool, now uint64) (model.PoolInfo, error) {
	tokens := p.Tokens()
	info := model.PoolInfo{
		ID:          id,
		Kind:        string(p.Kind),
		Tokens:      tokens,
		Reserves:    amountStrings(p.Reserves()),
		TotalFee:    p.TotalFee(),
		ShareSupply: p.Shares().TotalSupply().String(),
		SharePrice:  p.SharePrice().String(),
		Frozen:      st.FrozenPools[id],
	}
	for _, d := range p.Decimals() {
		info.Decimals = append(info.Decimals, uint32(d))
	}
	for i, v := range p.Volumes() {
		info.Volumes = append(info.Volumes, model.TokenVolume{
			Token:  tokens[i],
			Input:  v.Input.String(),
			Output: v.Output.String(),
		})
	}
	if amp, ok := p.AmpState(); ok {
		current, err := amp.Factor(now)
		if err != nil {
			return model.PoolInfo{}, err
		}
		info.Amp = &model.AmpInfo{
			Current:     current,
			Initial:     amp.Initial,
			Target:      amp.Target,
			RampStartTS: amp.RampStartTS,
			RampStopTS:  amp.RampStopTS,
		}
	}
	return info, nil
}

// GetReturn quotes a single swap without fees routed to any referral.
func (e *Exchange) GetReturn(id uint64, tokenIn string, amountIn *big.Int, tokenOut string) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(st *State, now uint64) error {
		p, err := st.Pools.View(id)
		if err != nil {
			return err
		}
		out, err = p.GetReturn(pool.CallEnv{Now: now, Admin: st.adminFees("")}, tokenIn, amountIn, tokenOut)
		return err
	})
	return out, err
}

// PredictAddLiquidity returns the shares amounts would mint now.
func (e *Exchange) PredictAddLiquidity(id uint64, amounts []*big.Int) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(st *State, now uint64) error {
		p, err := st.Pools.Get(id)
		if err != nil {
			return err
		}
		res, err := p.AddLiquidity(pool.CallEnv{Now: now, Admin: st.adminFees("")}, router.VirtualAccount, amounts, nil)
		if err != nil {
			return err
		}
		out = res.Shares
		return nil
	})
	return out, err
}

// PredictRemoveLiquidity returns what burning shares would pay out.
func (e *Exchange) PredictRemoveLiquidity(id uint64, shares *big.Int) ([]*big.Int, error) {
	var out []*big.Int
	err := e.view(func(st *State, _ uint64) error {
		p, err := st.Pools.View(id)
		if err != nil {
			return err
		}
		out, err = p.PreviewRemoveLiquidity(shares)
		return err
	})
	return out, err
}

// PredictRemoveLiquidityByTokens returns the shares an exact withdrawal burns.
func (e *Exchange) PredictRemoveLiquidityByTokens(id uint64, amounts []*big.Int) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(st *State, now uint64) error {
		p, err := st.Pools.View(id)
		if err != nil {
			return err
		}
		out, err = p.PreviewRemoveLiquidityByTokens(pool.CallEnv{Now: now, Admin: st.adminFees("")}, amounts)
		return err
	})
	return out, err
}

// PredictSwapActions dry-runs actions and returns every hop's output.
func (e *Exchange) PredictSwapActions(actions []router.SwapAction, amountIn *big.Int) ([]*big.Int, error) {
	var out []*big.Int
	err := e.view(func(st *State, now uint64) error {
		var err error
		out, err = router.Predict(st.Pools, st, pool.CallEnv{Now: now, Admin: st.adminFees("")}, actions, amountIn)
		return err
	})
	return out, err
}

// Deposits lists the positive balances of account.
func (e *Exchange) Deposits(account string) []ledger.TokenAmount {
	var out []ledger.TokenAmount
	_ = e.view(func(st *State, _ uint64) error {
		out = st.Ledger.Balances(account)
		return nil
	})
	return out
}

func (e *Exchange) DepositOf(account, token string) *big.Int {
	var out *big.Int
	_ = e.view(func(st *State, _ uint64) error {
		out = st.Ledger.GetBalance(account, token)
		return nil
	})
	return out
}

// Shares returns the share balance of account in pool id.
func (e *Exchange) Shares(id uint64, account string) (*big.Int, error) {
	var out *big.Int
	err := e.view(func(st *State, _ uint64) error {
		p, err := st.Pools.View(id)
		if err != nil {
			return err
		}
		out = p.Shares().BalanceOf(account)
		return nil
	})
	return out, err
}

// Pending lists unresolved outward transfers by id.
func (e *Exchange) Pending() []PendingTransfer {
	var out []PendingTransfer
	_ = e.view(func(st *State, _ uint64) error {
		out = st.pendingList()
		return nil
	})
	return out
}

func (e *Exchange) LostFound(account string) []ledger.TokenAmount {
	var out []ledger.TokenAmount
	_ = e.view(func(st *State, _ uint64) error {
		out = st.Ledger.LostFound(account)
		return nil
	})
	return out
}

// PendingTransfer returns one unresolved transfer.
func (e *Exchange) PendingTransfer(id uint64) (PendingTransfer, error) {
	var out PendingTransfer
	err := e.view(func(st *State, _ uint64) error {
		t, ok := st.Pending[id]
		if !ok {
			return dexerr.ErrUnknownTransfer.Wrapf("transfer %d", id)
		}
		t.Amount = new(big.Int).Set(t.Amount)
		out = t
		return nil
	})
	return out, err
}

// Holdings is what the exchange must have in custody per token: deposits,
// lost-and-found, pool reserves, and transfers still in flight.
func (e *Exchange) Holdings() []ledger.TokenAmount {
	var out []ledger.TokenAmount
	_ = e.view(func(st *State, _ uint64) error {
		totals := st.Ledger.Totals()
		add := func(token string, amount *big.Int) {
			if _, ok := totals[token]; !ok {
				totals[token] = new(big.Int)
			}
			totals[token].Add(totals[token], amount)
		}
		for _, p := range st.Pools.List(0, 0) {
			for i, r := range p.Reserves() {
				add(p.Tokens()[i], r)
			}
		}
		for _, t := range st.Pending {
			add(t.Token, t.Amount)
		}
		tokens := make([]string, 0, len(totals))
		for t := range totals {
			tokens = append(tokens, t)
		}
		sort.Strings(tokens)
		for _, t := range tokens {
			out = append(out, ledger.TokenAmount{Token: t, Amount: totals[t]})
		}
		return nil
	})
	return out
}
