// Package registry is the append-only, index-addressed collection of pools.
package registry

import (
	"encoding/json"

	"swapCore/internal/dexerr"
	"swapCore/internal/pool"
)

// Registry assigns pools consecutive ids starting at zero. Pools are never
// removed.
type Registry struct {
	pools []*pool.Pool
}

func New() *Registry {
	return &Registry{}
}

// Add appends p and returns its id.
func (r *Registry) Add(p *pool.Pool) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	r.pools = append(r.pools, p.Clone())
	return uint64(len(r.pools) - 1), nil
}

func (r *Registry) Len() uint64 {
	return uint64(len(r.pools))
}

// Get returns a copy of pool id; mutate it and hand it back with Replace.
func (r *Registry) Get(id uint64) (*pool.Pool, error) {
	p, err := r.at(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// View returns the stored pool without copying. Callers must not mutate it.
func (r *Registry) View(id uint64) (*pool.Pool, error) {
	return r.at(id)
}

// Replace stores p under id. The curve family of a pool never changes.
func (r *Registry) Replace(id uint64, p *pool.Pool) error {
	cur, err := r.at(id)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if cur.Kind != p.Kind {
		return dexerr.ErrInvalidPool.Wrapf("pool %d is %s, not %s", id, cur.Kind, p.Kind)
	}
	r.pools[id] = p
	return nil
}

// List returns copies of up to limit pools starting at from.
func (r *Registry) List(from, limit uint64) []*pool.Pool {
	n := r.Len()
	if from >= n {
		return nil
	}
	end := n
	if limit > 0 && from+limit < n {
		end = from + limit
	}
	out := make([]*pool.Pool, 0, end-from)
	for _, p := range r.pools[from:end] {
		out = append(out, p.Clone())
	}
	return out
}

func (r *Registry) Clone() *Registry {
	c := &Registry{pools: make([]*pool.Pool, len(r.pools))}
	for i, p := range r.pools {
		c.pools[i] = p.Clone()
	}
	return c
}

func (r *Registry) at(id uint64) (*pool.Pool, error) {
	if id >= uint64(len(r.pools)) {
		return nil, dexerr.ErrInvalidPool.Wrapf("pool %d does not exist", id)
	}
	return r.pools[id], nil
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	if r.pools == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.pools)
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	var pools []*pool.Pool
	if err := json.Unmarshal(data, &pools); err != nil {
		return err
	}
	for i, p := range pools {
		if err := p.Validate(); err != nil {
			return dexerr.ErrInvalidPool.Wrapf("pool %d: %v", i, err)
		}
	}
	r.pools = pools
	return nil
}
