// Package ledger keeps per-account token balances and parks transfers that
// could not be delivered.
package ledger

import (
	"encoding/json"
	"math/big"
	"sort"

	"swapCore/internal/dexerr"
)

// TokenAmount pairs a token id with an amount.
type TokenAmount struct {
	Token  string   `json:"token"`
	Amount *big.Int `json:"amount"`
}

// Account holds one account's deposited balances.
type Account struct {
	ID     string
	tokens map[string]*big.Int
}

func NewAccount(id string) *Account {
	return &Account{ID: id, tokens: make(map[string]*big.Int)}
}

// Balance returns a copy of the token balance; unknown tokens hold zero.
func (a *Account) Balance(token string) *big.Int {
	if b, ok := a.tokens[token]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// RegisterToken opens a zero balance for token.
func (a *Account) RegisterToken(token string) {
	if _, ok := a.tokens[token]; !ok {
		a.tokens[token] = new(big.Int)
	}
}

// UnregisterToken closes an empty token balance.
func (a *Account) UnregisterToken(token string) error {
	b, ok := a.tokens[token]
	if !ok {
		return nil
	}
	if b.Sign() != 0 {
		return dexerr.ErrInvalidAction.Wrapf("account %q still holds %s of %q", a.ID, b, token)
	}
	delete(a.tokens, token)
	return nil
}

// MaxBalance is the largest balance one account may hold of a token.
var MaxBalance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Deposit adds an external transfer to a token the account has registered.
func (a *Account) Deposit(token string, amount *big.Int) error {
	if _, ok := a.tokens[token]; !ok {
		return dexerr.ErrNotRegistered.Wrapf("token %q is not registered on %q", token, a.ID)
	}
	return a.add(token, amount, "deposit")
}

// Credit adds an internal payout, opening the token balance when needed.
func (a *Account) Credit(token string, amount *big.Int) error {
	return a.add(token, amount, "credit")
}

func (a *Account) add(token string, amount *big.Int, op string) error {
	if amount == nil || amount.Sign() < 0 {
		return dexerr.ErrInvalidAmount.Wrapf("%s of %q", op, token)
	}
	next := new(big.Int).Add(a.Balance(token), amount)
	if next.Cmp(MaxBalance) > 0 {
		return dexerr.ErrArithmeticOverflow.Wrapf("%s of %s %q on %q exceeds 2^128-1", op, amount, token, a.ID)
	}
	a.RegisterToken(token)
	a.tokens[token].Set(next)
	return nil
}

func (a *Account) Withdraw(token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return dexerr.ErrInvalidAmount.Wrapf("withdrawal of %q", token)
	}
	b, ok := a.tokens[token]
	if !ok || b.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have.Set(b)
		}
		return dexerr.ErrInsufficientBalance.Wrapf("account %q holds %s of %q, needs %s", a.ID, have, token, amount)
	}
	b.Sub(b, amount)
	return nil
}

// NonZero lists every positive balance ordered by token.
func (a *Account) NonZero() []TokenAmount {
	out := make([]TokenAmount, 0, len(a.tokens))
	for _, t := range a.Tokens() {
		if b := a.tokens[t]; b.Sign() > 0 {
			out = append(out, TokenAmount{Token: t, Amount: new(big.Int).Set(b)})
		}
	}
	return out
}

// Tokens lists registered tokens in lexical order.
func (a *Account) Tokens() []string {
	out := make([]string, 0, len(a.tokens))
	for t := range a.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (a *Account) IsEmpty() bool {
	for _, b := range a.tokens {
		if b.Sign() != 0 {
			return false
		}
	}
	return true
}

func (a *Account) Clone() *Account {
	c := NewAccount(a.ID)
	for t, b := range a.tokens {
		c.tokens[t] = new(big.Int).Set(b)
	}
	return c
}

type accountJSON struct {
	ID     string              `json:"id"`
	Tokens map[string]*big.Int `json:"tokens"`
}

func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{ID: a.ID, Tokens: a.tokens})
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var in accountJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	a.ID = in.ID
	a.tokens = make(map[string]*big.Int, len(in.Tokens))
	for t, b := range in.Tokens {
		if b == nil || b.Sign() < 0 || b.Cmp(MaxBalance) > 0 {
			return dexerr.ErrInvalidAmount.Wrapf("balance of %q for %q", t, in.ID)
		}
		a.tokens[t] = b
	}
	return nil
}
