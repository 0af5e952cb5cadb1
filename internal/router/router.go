// Package router executes ordered swap actions across pools, chaining each
// hop's output into the next.
package router

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"

	"swapCore/internal/dexerr"
	"swapCore/internal/ledger"
	"swapCore/internal/pool"
	"swapCore/internal/registry"
)

// VirtualAccount is the id of the transient account used by instant swaps.
const VirtualAccount = "@"

// SwapAction is one hop. A nil AmountIn consumes the previous hop's output.
type SwapAction struct {
	PoolID       uint64   `json:"pool_id"`
	TokenIn      string   `json:"token_in"`
	AmountIn     *big.Int `json:"amount_in,omitempty"`
	TokenOut     string   `json:"token_out"`
	MinAmountOut *big.Int `json:"min_amount_out"`
}

// Hop records what one action did.
type Hop struct {
	PoolID   uint64
	TokenIn  string
	AmountIn *big.Int
	TokenOut string
	Result   pool.SwapResult
}

// Book is the balance an action sequence draws from and pays into. Credit
// must accept tokens the book has not seen yet.
type Book interface {
	Credit(token string, amount *big.Int) error
	Withdraw(token string, amount *big.Int) error
}

// Guard rejects pools and tokens under an emergency freeze.
type Guard interface {
	CheckPool(id uint64) error
	CheckToken(token string) error
}

type openGuard struct{}

func (openGuard) CheckPool(uint64) error  { return nil }
func (openGuard) CheckToken(string) error { return nil }

// Router mutates pools in place through the registry it was built with.
// Callers that need all-or-nothing semantics hand it a registry copy and
// discard it on error.
type Router struct {
	pools *registry.Registry
	guard Guard
}

func New(pools *registry.Registry, guard Guard) *Router {
	if guard == nil {
		guard = openGuard{}
	}
	return &Router{pools: pools, guard: guard}
}

// ExecuteActions runs actions in order against book. prev seeds the first
// action when its AmountIn is nil. It returns the last hop's output.
func (r *Router) ExecuteActions(env pool.CallEnv, book Book, actions []SwapAction, prev *big.Int) (*big.Int, []Hop, error) {
	if len(actions) == 0 {
		return nil, nil, dexerr.ErrInvalidAction.Wrap("no actions")
	}
	for i, a := range actions {
		if err := r.check(a); err != nil {
			return nil, nil, errorsmod.Wrapf(err, "action %d", i)
		}
	}
	hops := make([]Hop, 0, len(actions))
	for i, a := range actions {
		amountIn := a.AmountIn
		if amountIn == nil {
			if prev == nil {
				return nil, nil, dexerr.ErrInvalidAction.Wrapf("action %d has no amount and nothing precedes it", i)
			}
			amountIn = prev
		}
		hop, err := r.swap(env, book, a, amountIn)
		if err != nil {
			return nil, nil, errorsmod.Wrapf(err, "action %d", i)
		}
		hops = append(hops, hop)
		prev = hop.Result.AmountOut
	}
	return new(big.Int).Set(prev), hops, nil
}

// check runs the guard over one action. Every action is checked before the
// first hop moves anything.
func (r *Router) check(a SwapAction) error {
	if err := r.guard.CheckPool(a.PoolID); err != nil {
		return err
	}
	if err := r.guard.CheckToken(a.TokenIn); err != nil {
		return err
	}
	return r.guard.CheckToken(a.TokenOut)
}

func (r *Router) swap(env pool.CallEnv, book Book, a SwapAction, amountIn *big.Int) (Hop, error) {
	if err := book.Withdraw(a.TokenIn, amountIn); err != nil {
		return Hop{}, err
	}
	p, err := r.pools.Get(a.PoolID)
	if err != nil {
		return Hop{}, err
	}
	res, err := p.Swap(env, a.TokenIn, amountIn, a.TokenOut, a.MinAmountOut)
	if err != nil {
		return Hop{}, err
	}
	if err := r.pools.Replace(a.PoolID, p); err != nil {
		return Hop{}, err
	}
	if err := book.Credit(a.TokenOut, res.AmountOut); err != nil {
		return Hop{}, err
	}
	return Hop{
		PoolID:   a.PoolID,
		TokenIn:  a.TokenIn,
		AmountIn: new(big.Int).Set(amountIn),
		TokenOut: a.TokenOut,
		Result:   res,
	}, nil
}

// InstantSwap runs actions on a virtual account credited with amountIn of
// tokenIn and returns every non-zero balance left on it. Nothing is retained.
func (r *Router) InstantSwap(env pool.CallEnv, tokenIn string, amountIn *big.Int, actions []SwapAction) ([]ledger.TokenAmount, []Hop, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, dexerr.ErrInvalidAmount.Wrap("instant swap needs a positive amount")
	}
	if len(actions) == 0 || actions[0].TokenIn != tokenIn {
		return nil, nil, dexerr.ErrInvalidAction.Wrapf("first action must spend %q", tokenIn)
	}
	virtual := ledger.NewAccount(VirtualAccount)
	if err := virtual.Credit(tokenIn, amountIn); err != nil {
		return nil, nil, err
	}
	_, hops, err := r.ExecuteActions(env, virtual, actions, amountIn)
	if err != nil {
		return nil, nil, err
	}
	return virtual.NonZero(), hops, nil
}

// Predict evaluates actions on a copy of the pools and returns each hop's
// output. amountIn seeds a first action without an amount.
func Predict(pools *registry.Registry, guard Guard, env pool.CallEnv, actions []SwapAction, amountIn *big.Int) ([]*big.Int, error) {
	r := New(pools.Clone(), guard)
	_, hops, err := r.ExecuteActions(env, unlimited{}, actions, amountIn)
	if err != nil {
		return nil, err
	}
	out := make([]*big.Int, len(hops))
	for i, h := range hops {
		out[i] = h.Result.AmountOut
	}
	return out, nil
}

// unlimited is a book that can always pay.
type unlimited struct{}

func (unlimited) Credit(string, *big.Int) error   { return nil }
func (unlimited) Withdraw(string, *big.Int) error { return nil }
