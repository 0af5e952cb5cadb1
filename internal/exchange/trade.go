package exchange

import (
	"math/big"

	"go.uber.org/zap"

	"swapCore/internal/dexerr"
	"swapCore/internal/metrics"
	"swapCore/internal/model"
	"swapCore/internal/router"
)

// Swap executes actions against the caller's deposits and returns the last
// hop's output. Any failing hop undoes every earlier one.
func (e *Exchange) Swap(account string, actions []router.SwapAction, referral string) (*big.Int, error) {
	var out *big.Int
	err := e.mutate("swap", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if account == router.VirtualAccount {
			return dexerr.ErrInvalidAction.Wrapf("account id %q is reserved", account)
		}
		book, err := t.st.Ledger.Account(account)
		if err != nil {
			return err
		}
		last, hops, err := router.New(t.st.Pools, t.st).ExecuteActions(t.env(referral), book, actions, nil)
		if err != nil {
			return err
		}
		t.hops(hops, referral)
		out = last
		return nil
	})
	return out, err
}

// InstantSwap trades amountIn of tokenIn sent alongside the call without a
// prior deposit. Every balance left on the virtual account is paid out to
// sender as a pending transfer.
func (e *Exchange) InstantSwap(sender, tokenIn string, amountIn *big.Int, actions []router.SwapAction, referral string) ([]PendingTransfer, error) {
	var out []PendingTransfer
	err := e.mutate("instant_swap", sender, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if err := t.st.CheckToken(tokenIn); err != nil {
			return err
		}
		balances, hops, err := router.New(t.st.Pools, t.st).InstantSwap(t.env(referral), tokenIn, amountIn, actions)
		if err != nil {
			return err
		}
		t.hops(hops, referral)
		for _, b := range balances {
			p := t.st.addPending(sender, b.Token, b.Amount)
			t.audit(model.AuditRecord{Kind: model.AuditWithdraw, TokenOut: b.Token, AmountOut: b.Amount.String(), Detail: transferDetail(p.ID)})
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (t *tx) hops(hops []router.Hop, referral string) {
	for _, h := range hops {
		h := h
		kind := ""
		if p, err := t.st.Pools.View(h.PoolID); err == nil {
			kind = string(p.Kind)
		}
		t.audit(model.AuditRecord{
			Kind:           model.AuditSwap,
			PoolID:         poolRef(h.PoolID),
			TokenIn:        h.TokenIn,
			AmountIn:       h.AmountIn.String(),
			TokenOut:       h.TokenOut,
			AmountOut:      amountString(h.Result.AmountOut),
			Fee:            amountString(h.Result.Fee),
			FeeToken:       h.Result.FeeToken,
			AdminFee:       amountString(h.Result.AdminFee),
			ExchangeShares: amountString(h.Result.ExchangeShares),
			ReferralShares: amountString(h.Result.ReferralShares),
			Referral:       referral,
		})
		t.info("swap",
			zap.Uint64("pool_id", h.PoolID),
			zap.String("token_in", h.TokenIn),
			zap.String("amount_in", h.AmountIn.String()),
			zap.String("token_out", h.TokenOut),
			zap.String("amount_out", amountString(h.Result.AmountOut)),
			zap.String("fee", amountString(h.Result.Fee)),
			zap.String("admin_fee", amountString(h.Result.AdminFee)),
		)
		t.observe(func(m *metrics.Metrics) { m.ObserveSwap(h.PoolID, kind, h.TokenIn, h.AmountIn) })
	}
	n := len(hops)
	t.observe(func(m *metrics.Metrics) { m.ObserveRoute(n) })
}
