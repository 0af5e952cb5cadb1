package exchange

import (
	"math/big"
	"sort"

	"swapCore/internal/dexerr"
	"swapCore/internal/fees"
	"swapCore/internal/ledger"
	"swapCore/internal/pool"
	"swapCore/internal/registry"
)

// DefaultExchangeID is the share account that receives admin fees.
const DefaultExchangeID = "exchange"

// Config seeds a fresh State.
type Config struct {
	Owner       string
	ExchangeID  string
	AdminFeeBps uint32
	// InitShares is minted by the first deposit into a constant-product pool.
	InitShares *big.Int
}

// PendingTransfer is an outward transfer whose debit is already applied and
// whose outcome is still unknown.
type PendingTransfer struct {
	ID      uint64   `json:"id"`
	Account string   `json:"account"`
	Token   string   `json:"token"`
	Amount  *big.Int `json:"amount"`
}

// State is everything the exchange persists. Every call works on a Clone and
// the clone replaces the live state only when the call succeeds.
type State struct {
	Owner        string                     `json:"owner"`
	ExchangeID   string                     `json:"exchange_id"`
	AdminFeeBps  uint32                     `json:"admin_fee_bps"`
	InitShares   *big.Int                   `json:"init_shares"`
	Paused       bool                       `json:"paused"`
	Pools        *registry.Registry         `json:"pools"`
	Ledger       *ledger.Memory             `json:"ledger"`
	Referrals    map[string]uint32          `json:"referrals"`
	FrozenTokens map[string]bool            `json:"frozen_tokens"`
	FrozenPools  map[uint64]bool            `json:"frozen_pools"`
	Pending      map[uint64]PendingTransfer `json:"pending"`
	NextTransfer uint64                     `json:"next_transfer"`
	AuditSeq     uint64                     `json:"audit_seq"`
}

func NewState(cfg Config) (*State, error) {
	if cfg.Owner == "" {
		return nil, dexerr.ErrInvalidAction.Wrap("owner is required")
	}
	if err := fees.ValidateBps(cfg.AdminFeeBps); err != nil {
		return nil, err
	}
	if cfg.ExchangeID == "" {
		cfg.ExchangeID = DefaultExchangeID
	}
	if cfg.InitShares == nil {
		cfg.InitShares = new(big.Int).Set(pool.DefaultInitShares)
	}
	if cfg.InitShares.Sign() <= 0 {
		return nil, dexerr.ErrInvalidAmount.Wrap("init shares must be positive")
	}
	st := &State{
		Owner:       cfg.Owner,
		ExchangeID:  cfg.ExchangeID,
		AdminFeeBps: cfg.AdminFeeBps,
		InitShares:  new(big.Int).Set(cfg.InitShares),
	}
	st.normalize()
	st.Ledger.Register(cfg.Owner)
	return st, nil
}

// normalize fills containers a decoded snapshot may lack.
func (s *State) normalize() {
	if s.ExchangeID == "" {
		s.ExchangeID = DefaultExchangeID
	}
	if s.InitShares == nil {
		s.InitShares = new(big.Int).Set(pool.DefaultInitShares)
	}
	if s.Pools == nil {
		s.Pools = registry.New()
	}
	if s.Ledger == nil {
		s.Ledger = ledger.NewMemory()
	}
	if s.Referrals == nil {
		s.Referrals = make(map[string]uint32)
	}
	if s.FrozenTokens == nil {
		s.FrozenTokens = make(map[string]bool)
	}
	if s.FrozenPools == nil {
		s.FrozenPools = make(map[uint64]bool)
	}
	if s.Pending == nil {
		s.Pending = make(map[uint64]PendingTransfer)
	}
}

// Validate checks a decoded snapshot before it is served.
func (s *State) Validate() error {
	if s.Owner == "" {
		return dexerr.ErrInvalidAction.Wrap("snapshot has no owner")
	}
	if err := fees.ValidateBps(s.AdminFeeBps); err != nil {
		return err
	}
	for id, bps := range s.Referrals {
		if err := fees.ValidateBps(bps); err != nil {
			return dexerr.ErrInvalidFee.Wrapf("referral %q: %s", id, err)
		}
	}
	for id, t := range s.Pending {
		if id != t.ID || id >= s.NextTransfer || t.Amount == nil || t.Amount.Sign() <= 0 {
			return dexerr.ErrUnknownTransfer.Wrapf("pending transfer %d is malformed", id)
		}
	}
	s.normalize()
	return nil
}

func (s *State) Clone() *State {
	out := *s
	out.InitShares = new(big.Int).Set(s.InitShares)
	out.Pools = s.Pools.Clone()
	out.Ledger = s.Ledger.Clone()
	out.Referrals = make(map[string]uint32, len(s.Referrals))
	for k, v := range s.Referrals {
		out.Referrals[k] = v
	}
	out.FrozenTokens = make(map[string]bool, len(s.FrozenTokens))
	for k, v := range s.FrozenTokens {
		out.FrozenTokens[k] = v
	}
	out.FrozenPools = make(map[uint64]bool, len(s.FrozenPools))
	for k, v := range s.FrozenPools {
		out.FrozenPools[k] = v
	}
	out.Pending = make(map[uint64]PendingTransfer, len(s.Pending))
	for k, v := range s.Pending {
		v.Amount = new(big.Int).Set(v.Amount)
		out.Pending[k] = v
	}
	return &out
}

// CheckPool fails for frozen pools.
func (s *State) CheckPool(id uint64) error {
	if s.FrozenPools[id] {
		return dexerr.ErrFrozen.Wrapf("pool %d", id)
	}
	return nil
}

// CheckToken fails for frozen tokens.
func (s *State) CheckToken(token string) error {
	if s.FrozenTokens[token] {
		return dexerr.ErrFrozen.Wrapf("token %q", token)
	}
	return nil
}

func (s *State) checkTokens(tokens []string) error {
	for _, t := range tokens {
		if err := s.CheckToken(t); err != nil {
			return err
		}
	}
	return nil
}

// adminFees builds the fee routing for a call. Unknown referrals are ignored.
func (s *State) adminFees(referral string) fees.AdminFees {
	a := fees.AdminFees{AdminFeeBps: s.AdminFeeBps, ExchangeID: s.ExchangeID}
	if bps, ok := s.Referrals[referral]; ok && referral != "" {
		a.Referral = &fees.Referral{ID: referral, FeeBps: bps}
	}
	return a
}

func (s *State) addPending(account, token string, amount *big.Int) PendingTransfer {
	t := PendingTransfer{
		ID:      s.NextTransfer,
		Account: account,
		Token:   token,
		Amount:  new(big.Int).Set(amount),
	}
	s.Pending[t.ID] = t
	s.NextTransfer++
	return t
}

func (s *State) pendingList() []PendingTransfer {
	out := make([]PendingTransfer, 0, len(s.Pending))
	for _, t := range s.Pending {
		t.Amount = new(big.Int).Set(t.Amount)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedTokens(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for t, ok := range m {
		if ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func sortedPools(m map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(m))
	for id, ok := range m {
		if ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
