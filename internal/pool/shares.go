package pool

import (
	"encoding/json"
	"math/big"
	"sort"

	"swapCore/internal/dexerr"
)

// ShareLedger tracks per-account pool shares. The total always equals the sum
// of balances.
type ShareLedger struct {
	balances map[string]*big.Int
	total    *big.Int
}

// NewShareLedger returns an empty ledger.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{balances: make(map[string]*big.Int), total: new(big.Int)}
}

// TotalSupply returns a copy of the outstanding share count.
func (l *ShareLedger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.total)
}

// BalanceOf returns a copy of account's shares; unknown accounts hold zero.
func (l *ShareLedger) BalanceOf(account string) *big.Int {
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *ShareLedger) Registered(account string) bool {
	_, ok := l.balances[account]
	return ok
}

// Register creates a zero entry for account. Registering twice is a no-op.
func (l *ShareLedger) Register(account string) {
	if _, ok := l.balances[account]; !ok {
		l.balances[account] = new(big.Int)
	}
}

// Unregister drops an account entry that holds no shares.
func (l *ShareLedger) Unregister(account string) error {
	b, ok := l.balances[account]
	if !ok {
		return dexerr.ErrNotRegistered.Wrapf("account %q has no share entry", account)
	}
	if b.Sign() != 0 {
		return dexerr.ErrNonZeroShares.Wrapf("account %q holds %s shares", account, b)
	}
	delete(l.balances, account)
	return nil
}

// Mint credits amount new shares to account, creating the entry if needed.
func (l *ShareLedger) Mint(account string, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	l.Register(account)
	l.balances[account].Add(l.balances[account], amount)
	l.total.Add(l.total, amount)
}

// Burn destroys amount of account's shares.
func (l *ShareLedger) Burn(account string, amount *big.Int) error {
	b := l.BalanceOf(account)
	if b.Cmp(amount) < 0 {
		return dexerr.ErrInsufficientShares.Wrapf("account %q holds %s, needs %s", account, b, amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.balances[account].Sub(l.balances[account], amount)
	l.total.Sub(l.total, amount)
	return nil
}

// Transfer moves shares between accounts. The receiver must be registered.
func (l *ShareLedger) Transfer(from, to string, amount *big.Int) error {
	if !l.Registered(to) {
		return dexerr.ErrNotRegistered.Wrapf("receiver %q has no share entry", to)
	}
	b := l.BalanceOf(from)
	if b.Cmp(amount) < 0 {
		return dexerr.ErrInsufficientShares.Wrapf("account %q holds %s, needs %s", from, b, amount)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	l.balances[from].Sub(l.balances[from], amount)
	l.balances[to].Add(l.balances[to], amount)
	return nil
}

// Accounts lists registered accounts in lexical order.
func (l *ShareLedger) Accounts() []string {
	out := make([]string, 0, len(l.balances))
	for a := range l.balances {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (l *ShareLedger) Clone() *ShareLedger {
	c := &ShareLedger{balances: make(map[string]*big.Int, len(l.balances)), total: new(big.Int).Set(l.total)}
	for a, b := range l.balances {
		c.balances[a] = new(big.Int).Set(b)
	}
	return c
}

// validate recomputes the total from the balances.
func (l *ShareLedger) validate() error {
	if l == nil || l.balances == nil || l.total == nil {
		return dexerr.ErrInvalidPool.Wrap("missing share ledger")
	}
	sum := new(big.Int)
	for a, b := range l.balances {
		if b == nil || b.Sign() < 0 {
			return dexerr.ErrInvalidAmount.Wrapf("share balance of %q", a)
		}
		sum.Add(sum, b)
	}
	if sum.Cmp(l.total) != 0 {
		return dexerr.ErrInvariantViolated.Wrapf("share total %s does not match balances %s", l.total, sum)
	}
	return nil
}

type shareLedgerJSON struct {
	Total    *big.Int            `json:"total"`
	Balances map[string]*big.Int `json:"balances"`
}

func (l *ShareLedger) MarshalJSON() ([]byte, error) {
	return json.Marshal(shareLedgerJSON{Total: l.total, Balances: l.balances})
}

func (l *ShareLedger) UnmarshalJSON(data []byte) error {
	var in shareLedgerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	l.balances = make(map[string]*big.Int, len(in.Balances))
	l.total = new(big.Int)
	for a, v := range in.Balances {
		if v == nil || v.Sign() < 0 {
			return dexerr.ErrInvalidAmount.Wrapf("share balance of %q", a)
		}
		l.balances[a] = v
		l.total.Add(l.total, v)
	}
	if in.Total != nil && in.Total.Cmp(l.total) != 0 {
		return dexerr.ErrInvariantViolated.Wrapf("share total %s does not match balances %s", in.Total, l.total)
	}
	return nil
}
