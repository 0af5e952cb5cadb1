package aggregate

import (
	"context"
	"fmt"
	"sync"
)

// StaticDecimals maps token ids to configured decimals.
type StaticDecimals map[string]uint8

func (s StaticDecimals) Decimals(_ context.Context, token string) (uint8, error) {
	if d, ok := s[token]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("no decimals configured for %q", token)
}

// TokenDecimalsCache resolves decimals through a list of sources, trying
// each in order, and remembers every answer.
type TokenDecimalsCache struct {
	mu      sync.RWMutex
	data    map[string]uint8
	sources []DecimalsSource
}

func NewTokenDecimalsCache(sources ...DecimalsSource) *TokenDecimalsCache {
	return &TokenDecimalsCache{data: make(map[string]uint8), sources: sources}
}

func (c *TokenDecimalsCache) Get(token string) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[token]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(token string, decimals uint8) {
	c.mu.Lock()
	c.data[token] = decimals
	c.mu.Unlock()
}

func (c *TokenDecimalsCache) Decimals(ctx context.Context, token string) (uint8, error) {
	if d, ok := c.Get(token); ok {
		return d, nil
	}
	var last error
	for _, src := range c.sources {
		if src == nil {
			continue
		}
		d, err := src.Decimals(ctx, token)
		if err != nil {
			last = err
			continue
		}
		c.Set(token, d)
		return d, nil
	}
	if last == nil {
		last = fmt.Errorf("no decimals source for %q", token)
	}
	return 0, last
}
