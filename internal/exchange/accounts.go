package exchange

import (
	"math/big"
	"strconv"

	"go.uber.org/zap"

	"swapCore/internal/dexerr"
	"swapCore/internal/model"
	"swapCore/internal/router"
)

// RegisterAccount opens account and whitelists tokens on it.
func (e *Exchange) RegisterAccount(account string, tokens ...string) error {
	return e.mutate("register_account", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if account == "" {
			return dexerr.ErrInvalidAction.Wrap("empty account id")
		}
		if account == router.VirtualAccount {
			return dexerr.ErrInvalidAction.Wrapf("account id %q is reserved", account)
		}
		t.st.Ledger.Register(account, tokens...)
		t.info("account registered", zap.Strings("tokens", tokens))
		return nil
	})
}

// UnregisterAccount closes an account that holds nothing.
func (e *Exchange) UnregisterAccount(account string) error {
	return e.mutate("unregister_account", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if err := t.st.Ledger.Unregister(account); err != nil {
			return err
		}
		t.info("account unregistered")
		return nil
	})
}

// Deposit credits an inward transfer of a token the account has registered.
func (e *Exchange) Deposit(account, token string, amount *big.Int) error {
	return e.mutate("deposit", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return dexerr.ErrInvalidAmount.Wrap("deposit must be positive")
		}
		if err := t.st.CheckToken(token); err != nil {
			return err
		}
		if err := t.st.Ledger.Deposit(account, token, amount); err != nil {
			return err
		}
		t.audit(model.AuditRecord{Kind: model.AuditDeposit, TokenIn: token, AmountIn: amount.String()})
		t.info("deposit", zap.String("token", token), zap.String("amount", amount.String()))
		return nil
	})
}

// Withdraw debits token and returns the outward transfer to resolve. A nil
// amount withdraws the whole balance.
func (e *Exchange) Withdraw(account, token string, amount *big.Int) (PendingTransfer, error) {
	var out PendingTransfer
	err := e.mutate("withdraw", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if _, err := t.st.Ledger.Account(account); err != nil {
			return err
		}
		if amount == nil {
			amount = t.st.Ledger.GetBalance(account, token)
		}
		if amount.Sign() <= 0 {
			return dexerr.ErrInvalidAmount.Wrapf("nothing to withdraw of %q", token)
		}
		if err := t.st.Ledger.Withdraw(account, token, amount); err != nil {
			return err
		}
		out = t.st.addPending(account, token, amount)
		t.audit(model.AuditRecord{Kind: model.AuditWithdraw, TokenOut: token, AmountOut: amount.String(), Detail: transferDetail(out.ID)})
		t.info("withdraw", zap.Uint64("transfer_id", out.ID), zap.String("token", token), zap.String("amount", amount.String()))
		return nil
	})
	return out, err
}

// ResolveTransfer settles a pending transfer. A failed transfer is credited
// back, or parked in lost-and-found when the account is gone.
func (e *Exchange) ResolveTransfer(id uint64, ok bool) error {
	return e.mutate("resolve_transfer", "", func(t *tx) error {
		p, found := t.st.Pending[id]
		if !found {
			return dexerr.ErrUnknownTransfer.Wrapf("transfer %d", id)
		}
		delete(t.st.Pending, id)
		t.caller = p.Account
		outcome := "committed"
		if !ok {
			outcome = "refunded"
			parked, err := t.st.Ledger.Refund(p.Account, p.Token, p.Amount)
			if err != nil {
				return err
			}
			if parked {
				outcome = "lost_found"
			}
		}
		t.audit(model.AuditRecord{
			Kind:      model.AuditTransferResolved,
			TokenOut:  p.Token,
			AmountOut: p.Amount.String(),
			Detail:    transferDetail(id) + " " + outcome,
		})
		t.info("transfer resolved", zap.Uint64("transfer_id", id), zap.String("outcome", outcome))
		return nil
	})
}

// ClaimLostFound moves a parked amount back into the account's balance.
func (e *Exchange) ClaimLostFound(account, token string) (*big.Int, error) {
	var out *big.Int
	err := e.mutate("claim_lost_found", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if _, err := t.st.Ledger.Account(account); err != nil {
			return err
		}
		amount, err := t.st.Ledger.ClaimLostFound(account, token)
		if err != nil {
			return err
		}
		if err := t.st.Ledger.Credit(account, token, amount); err != nil {
			return err
		}
		out = amount
		t.audit(model.AuditRecord{Kind: model.AuditDeposit, TokenIn: token, AmountIn: amount.String(), Detail: "lost_found"})
		t.info("lost-and-found claimed", zap.String("token", token), zap.String("amount", amount.String()))
		return nil
	})
	return out, err
}

// DonateToken hands a deposited balance to the owner. A nil amount donates all
// of it.
func (e *Exchange) DonateToken(account, token string, amount *big.Int) error {
	return e.mutate("donate_token", account, func(t *tx) error {
		if err := t.requireRunning(); err != nil {
			return err
		}
		if amount == nil {
			amount = t.st.Ledger.GetBalance(account, token)
		}
		if amount.Sign() <= 0 {
			return dexerr.ErrInvalidAmount.Wrapf("nothing to donate of %q", token)
		}
		if err := t.st.Ledger.Withdraw(account, token, amount); err != nil {
			return err
		}
		t.st.Ledger.Register(t.st.Owner)
		if err := t.st.Ledger.Credit(t.st.Owner, token, amount); err != nil {
			return err
		}
		t.audit(model.AuditRecord{Kind: model.AuditDonate, TokenIn: token, AmountIn: amount.String(), Detail: "to " + t.st.Owner})
		t.info("token donated", zap.String("token", token), zap.String("amount", amount.String()))
		return nil
	})
}

func transferDetail(id uint64) string {
	return "transfer " + strconv.FormatUint(id, 10)
}
