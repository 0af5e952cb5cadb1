// Package tokenmeta reads ERC20 metadata and balances for tokens whose ids
// are contract addresses.
package tokenmeta

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapCore/internal/model"
)

// Caller performs eth_call. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Resolver fetches token metadata with retries and caches successful reads.
type Resolver struct {
	caller     Caller
	cache      *TokenMetaCache
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewResolver(caller Caller, maxRetries int, backoff time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		caller:     caller,
		cache:      NewTokenMetaCache(),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Resolve returns metadata for token, an ERC20 address.
func (r *Resolver) Resolve(ctx context.Context, token string) (model.TokenMeta, error) {
	addr, err := ParseAddress(token)
	if err != nil {
		return model.TokenMeta{Token: token}, err
	}
	if meta, ok := r.cache.Get(addr); ok {
		meta.Token = token
		return meta, nil
	}
	var meta model.TokenMeta
	err = withRetry(ctx, r.logger, "metadata", addr, r.maxRetries, r.backoff, func(ctx context.Context) error {
		var ferr error
		meta, ferr = FetchTokenMeta(ctx, r.caller, addr, r.logger)
		return ferr
	})
	meta.Token = token
	if err != nil {
		return meta, err
	}
	r.cache.Set(addr, meta)
	return meta, nil
}

// Decimals returns the decimals of token.
func (r *Resolver) Decimals(ctx context.Context, token string) (uint8, error) {
	meta, err := r.Resolve(ctx, token)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// DecimalsOf resolves every token in order.
func (r *Resolver) DecimalsOf(ctx context.Context, tokens []string) ([]uint8, error) {
	out := make([]uint8, len(tokens))
	for i, t := range tokens {
		d, err := r.Decimals(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("decimals of %s: %w", t, err)
		}
		out[i] = d
	}
	return out, nil
}

// BalanceOf reads the ERC20 balance of holder at block; a nil block reads
// latest.
func (r *Resolver) BalanceOf(ctx context.Context, token, holder string, block *big.Int) (*big.Int, error) {
	tokenAddr, err := ParseAddress(token)
	if err != nil {
		return nil, err
	}
	holderAddr, err := ParseAddress(holder)
	if err != nil {
		return nil, err
	}
	var bal *big.Int
	err = withRetry(ctx, r.logger, "balanceOf", tokenAddr, r.maxRetries, r.backoff, func(ctx context.Context) error {
		var ferr error
		bal, ferr = balanceOf(ctx, r.caller, tokenAddr, holderAddr, block)
		return ferr
	})
	return bal, err
}

// FetchTokenMeta loads token metadata via ERC20 calls. Symbol and name fall
// back to bytes32 encodings used by older tokens.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, permanent(fmt.Errorf("chain client is nil"))
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, permanent(fmt.Errorf("parse erc20 string abi: %w", err))
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, permanent(fmt.Errorf("parse erc20 bytes32 abi: %w", err))
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		return callMethod(ctx, caller, token, parsed, method, nil)
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, permanent(err)
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func balanceOf(ctx context.Context, caller Caller, token, holder common.Address, block *big.Int) (*big.Int, error) {
	if caller == nil {
		return nil, permanent(fmt.Errorf("chain client is nil"))
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, permanent(err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", block, holder)
	if err != nil {
		return nil, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, permanent(fmt.Errorf("balanceOf unexpected type %T", values[0]))
	}
	return bal, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, permanent(fmt.Errorf("pack %s: %w", method, err))
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, permanent(fmt.Errorf("unpack %s: %w", method, err))
	}
	if len(values) != 1 {
		return nil, permanent(fmt.Errorf("%s return size %d", method, len(values)))
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
