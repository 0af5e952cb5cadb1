package ledger

import (
	"encoding/json"
	"math/big"
	"sort"

	"swapCore/internal/dexerr"
)

// Memory is an in-memory balance ledger with a lost-and-found area for
// payouts that bounced back to an unregistered account.
type Memory struct {
	accounts  map[string]*Account
	lostFound map[string]*Account
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*Account), lostFound: make(map[string]*Account)}
}

// Register opens account and whitelists tokens for it. It is safe to call
// repeatedly.
func (m *Memory) Register(account string, tokens ...string) {
	acc, ok := m.accounts[account]
	if !ok {
		acc = NewAccount(account)
		m.accounts[account] = acc
	}
	for _, t := range tokens {
		acc.RegisterToken(t)
	}
}

func (m *Memory) Registered(account string) bool {
	_, ok := m.accounts[account]
	return ok
}

// Unregister closes an account that holds nothing.
func (m *Memory) Unregister(account string) error {
	acc, err := m.Account(account)
	if err != nil {
		return err
	}
	if !acc.IsEmpty() {
		return dexerr.ErrInvalidAction.Wrapf("account %q still holds tokens", account)
	}
	delete(m.accounts, account)
	return nil
}

// Account returns the live account record.
func (m *Memory) Account(account string) (*Account, error) {
	acc, ok := m.accounts[account]
	if !ok {
		return nil, dexerr.ErrNotRegistered.Wrapf("account %q", account)
	}
	return acc, nil
}

func (m *Memory) GetBalance(account, token string) *big.Int {
	acc, ok := m.accounts[account]
	if !ok {
		return new(big.Int)
	}
	return acc.Balance(token)
}

func (m *Memory) Deposit(account, token string, amount *big.Int) error {
	acc, err := m.Account(account)
	if err != nil {
		return err
	}
	return acc.Deposit(token, amount)
}

func (m *Memory) Withdraw(account, token string, amount *big.Int) error {
	acc, ok := m.accounts[account]
	if !ok {
		return dexerr.ErrInsufficientBalance.Wrapf("account %q is not registered", account)
	}
	return acc.Withdraw(token, amount)
}

// Balances lists the account's positive balances.
func (m *Memory) Balances(account string) []TokenAmount {
	acc, ok := m.accounts[account]
	if !ok {
		return nil
	}
	return acc.NonZero()
}

// Credit pays an internal transfer to a registered account, opening the
// token balance when needed.
func (m *Memory) Credit(account, token string, amount *big.Int) error {
	acc, err := m.Account(account)
	if err != nil {
		return err
	}
	return acc.Credit(token, amount)
}

// Refund returns amount to account, or parks it in lost-and-found when the
// account no longer exists.
func (m *Memory) Refund(account, token string, amount *big.Int) (parked bool, err error) {
	if acc, ok := m.accounts[account]; ok {
		return false, acc.Credit(token, amount)
	}
	lf, ok := m.lostFound[account]
	if !ok {
		lf = NewAccount(account)
	}
	if err := lf.Credit(token, amount); err != nil {
		return true, err
	}
	m.lostFound[account] = lf
	return true, nil
}

// LostFound lists what is parked for account.
func (m *Memory) LostFound(account string) []TokenAmount {
	lf, ok := m.lostFound[account]
	if !ok {
		return nil
	}
	return lf.NonZero()
}

// ClaimLostFound removes and returns the parked amount of token.
func (m *Memory) ClaimLostFound(account, token string) (*big.Int, error) {
	lf, ok := m.lostFound[account]
	if !ok || lf.Balance(token).Sign() == 0 {
		return nil, dexerr.ErrInsufficientBalance.Wrapf("nothing of %q parked for %q", token, account)
	}
	amount := lf.Balance(token)
	_ = lf.Withdraw(token, amount)
	_ = lf.UnregisterToken(token)
	if len(lf.tokens) == 0 {
		delete(m.lostFound, account)
	}
	return amount, nil
}

// Totals sums every registered and parked balance per token.
func (m *Memory) Totals() map[string]*big.Int {
	out := make(map[string]*big.Int)
	add := func(accs map[string]*Account) {
		for _, a := range accs {
			for t, b := range a.tokens {
				if _, ok := out[t]; !ok {
					out[t] = new(big.Int)
				}
				out[t].Add(out[t], b)
			}
		}
	}
	add(m.accounts)
	add(m.lostFound)
	return out
}

// Accounts lists registered accounts in lexical order.
func (m *Memory) Accounts() []string {
	out := make([]string, 0, len(m.accounts))
	for a := range m.accounts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Clone() *Memory {
	c := &Memory{
		accounts:  make(map[string]*Account, len(m.accounts)),
		lostFound: make(map[string]*Account, len(m.lostFound)),
	}
	for id, a := range m.accounts {
		c.accounts[id] = a.Clone()
	}
	for id, a := range m.lostFound {
		c.lostFound[id] = a.Clone()
	}
	return c
}

type memoryJSON struct {
	Accounts  map[string]*Account `json:"accounts"`
	LostFound map[string]*Account `json:"lost_found"`
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(memoryJSON{Accounts: m.accounts, LostFound: m.lostFound})
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var in memoryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.accounts = make(map[string]*Account, len(in.Accounts))
	m.lostFound = make(map[string]*Account, len(in.LostFound))
	for id, a := range in.Accounts {
		if a == nil {
			a = NewAccount(id)
		}
		a.ID = id
		m.accounts[id] = a
	}
	for id, a := range in.LostFound {
		if a == nil {
			a = NewAccount(id)
		}
		a.ID = id
		m.lostFound[id] = a
	}
	return nil
}
