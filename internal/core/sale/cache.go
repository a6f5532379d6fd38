package sale

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LeJamon/goPresale/internal/core/types"
)

// cachedRound is the immutable part of a round.
type cachedRound struct {
	index   uint64
	address types.Address
	config  RoundConfig
}

// roundCache keeps recently used round configurations, by index and by
// derived address. Configurations never change once created, so entries
// are only evicted, never invalidated.
type roundCache struct {
	byIndex   *lru.Cache[uint64, *cachedRound]
	byAddress *lru.Cache[types.Address, *cachedRound]

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newRoundCache(size int) (*roundCache, error) {
	if size <= 0 {
		size = 256 // Default cache size
	}
	byIndex, err := lru.New[uint64, *cachedRound](size)
	if err != nil {
		return nil, err
	}
	byAddress, err := lru.New[types.Address, *cachedRound](size)
	if err != nil {
		return nil, err
	}
	return &roundCache{byIndex: byIndex, byAddress: byAddress}, nil
}

func (c *roundCache) Get(index uint64) (*cachedRound, bool) {
	r, ok := c.byIndex.Get(index)
	c.count(ok)
	return r, ok
}

func (c *roundCache) GetByAddress(addr types.Address) (*cachedRound, bool) {
	r, ok := c.byAddress.Get(addr)
	c.count(ok)
	return r, ok
}

func (c *roundCache) Add(r *cachedRound) {
	c.byIndex.Add(r.index, r)
	c.byAddress.Add(r.address, r)
}

func (c *roundCache) count(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

// Stats returns hit and miss counts.
func (c *roundCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
