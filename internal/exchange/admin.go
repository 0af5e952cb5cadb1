package exchange

import (
	"go.uber.org/zap"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/model"
)

// Owner calls stay available while the exchange is paused.

func (e *Exchange) RampAmp(account string, id uint64, target, stopTS uint64) error {
	return e.mutate("ramp_amp", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		p, err := t.st.Pools.Get(id)
		if err != nil {
			return err
		}
		if err := p.RampAmp(t.now, target, stopTS); err != nil {
			return err
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.admin("ramp amp", poolRef(id), zap.Uint64("pool_id", id), zap.Uint64("target", target), zap.Uint64("stop_ts", stopTS))
		return nil
	})
}

func (e *Exchange) StopRampAmp(account string, id uint64) error {
	return e.mutate("stop_ramp_amp", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		p, err := t.st.Pools.Get(id)
		if err != nil {
			return err
		}
		if err := p.StopRampAmp(t.now); err != nil {
			return err
		}
		if err := t.st.Pools.Replace(id, p); err != nil {
			return err
		}
		t.admin("stop ramp amp", poolRef(id), zap.Uint64("pool_id", id))
		return nil
	})
}

// SetReferral registers or updates a referral and its cut of admin fees.
func (e *Exchange) SetReferral(account, referral string, feeBps uint32) error {
	return e.mutate("set_referral", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		if referral == "" {
			return dexerr.ErrInvalidAction.Wrap("empty referral id")
		}
		if err := fees.ValidateBps(feeBps); err != nil {
			return err
		}
		t.st.Referrals[referral] = feeBps
		t.admin("set referral", nil, zap.String("referral", referral), zap.Uint32("fee_bps", feeBps))
		return nil
	})
}

func (e *Exchange) RemoveReferral(account, referral string) error {
	return e.mutate("remove_referral", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		if _, ok := t.st.Referrals[referral]; !ok {
			return dexerr.ErrNotRegistered.Wrapf("referral %q", referral)
		}
		delete(t.st.Referrals, referral)
		t.admin("remove referral", nil, zap.String("referral", referral))
		return nil
	})
}

func (e *Exchange) FreezeTokens(account string, tokens ...string) error {
	return e.setFrozenTokens("freeze_tokens", account, tokens, true)
}

func (e *Exchange) UnfreezeTokens(account string, tokens ...string) error {
	return e.setFrozenTokens("unfreeze_tokens", account, tokens, false)
}

func (e *Exchange) setFrozenTokens(op, account string, tokens []string, frozen bool) error {
	return e.mutate(op, account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		for _, tok := range tokens {
			if frozen {
				t.st.FrozenTokens[tok] = true
			} else {
				delete(t.st.FrozenTokens, tok)
			}
		}
		t.admin(op, nil, zap.Strings("tokens", tokens))
		return nil
	})
}

func (e *Exchange) FreezePool(account string, id uint64) error {
	return e.setFrozenPool("freeze_pool", account, id, true)
}

func (e *Exchange) UnfreezePool(account string, id uint64) error {
	return e.setFrozenPool("unfreeze_pool", account, id, false)
}

func (e *Exchange) setFrozenPool(op, account string, id uint64, frozen bool) error {
	return e.mutate(op, account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		if _, err := t.st.Pools.View(id); err != nil {
			return err
		}
		if frozen {
			t.st.FrozenPools[id] = true
		} else {
			delete(t.st.FrozenPools, id)
		}
		t.admin(op, poolRef(id), zap.Uint64("pool_id", id))
		return nil
	})
}

func (e *Exchange) Pause(account string) error {
	return e.setPaused("pause", account, true)
}

func (e *Exchange) Resume(account string) error {
	return e.setPaused("resume", account, false)
}

func (e *Exchange) setPaused(op, account string, paused bool) error {
	return e.mutate(op, account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		t.st.Paused = paused
		t.admin(op, nil)
		return nil
	})
}

// SetOwner hands ownership to next and opens a deposit account for it.
func (e *Exchange) SetOwner(account, next string) error {
	return e.mutate("set_owner", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		if next == "" {
			return dexerr.ErrInvalidAction.Wrap("empty owner id")
		}
		t.st.Owner = next
		t.st.Ledger.Register(next)
		t.admin("set owner", nil, zap.String("owner", next))
		return nil
	})
}

// SetAdminFee changes the protocol cut of trade and imbalance fees.
func (e *Exchange) SetAdminFee(account string, bps uint32) error {
	return e.mutate("set_admin_fee", account, func(t *tx) error {
		if err := t.requireOwner(); err != nil {
			return err
		}
		if err := fees.ValidateBps(bps); err != nil {
			return err
		}
		t.st.AdminFeeBps = bps
		t.admin("set admin fee", nil, zap.Uint32("admin_fee_bps", bps))
		return nil
	})
}

func (t *tx) admin(what string, poolID *uint64, fields ...zap.Field) {
	t.audit(model.AuditRecord{Kind: model.AuditAdmin, PoolID: poolID, Detail: what})
	t.info(what, fields...)
}
