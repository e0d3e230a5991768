// Package cache holds previously fetched creature snapshots keyed by id.
//
// Entries never expire; they live until Evict or EvictAll. Concurrent misses
// for the same id are coalesced into one fetch, and a fetch that was already
// running when its id got evicted does not store its (possibly stale) result.
package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/bestiary/internal/creature"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetch loads one creature from the backing store.
type Fetch func(ctx context.Context) (creature.Creature, error)

type Cache struct {
	items *gocache.Cache
	group singleflight.Group
	log   *zap.Logger

	// gens holds an eviction stamp only for ids with a fetch in flight; the
	// entry goes away with the last fetch for that id.
	mu       sync.Mutex // guards gens, clock, epoch, inflight
	gens     map[int32]uint64
	clock    uint64
	epoch    uint64
	inflight map[int32]int

	hits      atomic.Uint64
	misses    atomic.Uint64
	fills     atomic.Uint64
	evictions atomic.Uint64
}

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Items     int    `json:"items"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Fills     uint64 `json:"fills"`
	Evictions uint64 `json:"evictions"`
}

// token identifies the cache state a fetch started from.
type token struct {
	gen   uint64
	epoch uint64
}

func New(log *zap.Logger) *Cache {
	return &Cache{
		items:    gocache.New(gocache.NoExpiration, 0),
		log:      log,
		gens:     make(map[int32]uint64),
		inflight: make(map[int32]int),
	}
}

func key(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func (c *Cache) Get(id int32) (creature.Creature, bool) {
	v, ok := c.items.Get(key(id))
	if !ok {
		return creature.Creature{}, false
	}
	return v.(creature.Creature), true
}

// Put stores v unconditionally.
func (c *Cache) Put(id int32, v creature.Creature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Set(key(id), v, gocache.NoExpiration)
}

// Evict drops the entry for id. Evicting an absent id is a no-op apart from
// invalidating any fetch for it that is still in flight.
func (c *Cache) Evict(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] > 0 {
		c.clock++
		c.gens[id] = c.clock
	}
	k := key(id)
	c.group.Forget(k)
	c.items.Delete(k)
	c.evictions.Add(1)
}

// EvictAll drops every entry and invalidates every in-flight fetch.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for id := range c.inflight {
		c.group.Forget(key(id))
	}
	c.items.Flush()
	c.evictions.Add(1)
}

// Load returns the cached creature for id or, on a miss, runs fetch exactly
// once for all concurrent callers of the same id. fetch runs on a context
// that ignores the cancellation of whichever caller started it; a caller
// whose ctx ends while waiting gets ctx.Err() and the fetch carries on.
func (c *Cache) Load(ctx context.Context, id int32, fetch Fetch) (creature.Creature, error) {
	if v, ok := c.Get(id); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key(id), func() (any, error) {
		tok := c.begin(id)
		defer c.end(id)

		v, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.fill(id, v, tok)
		return v, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return creature.Creature{}, r.Err
		}
		return r.Val.(creature.Creature), nil
	case <-ctx.Done():
		return creature.Creature{}, ctx.Err()
	}
}

func (c *Cache) begin(id int32) token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[id]++
	return token{gen: c.gens[id], epoch: c.epoch}
}

func (c *Cache) end(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id]--; c.inflight[id] <= 0 {
		delete(c.inflight, id)
		delete(c.gens, id)
	}
}

// fill stores v only if id was not evicted since tok was taken.
func (c *Cache) fill(id int32, v creature.Creature, tok token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != tok.gen || c.epoch != tok.epoch {
		c.log.Debug("discarding fetch invalidated while in flight", zap.Int32("id", id))
		return
	}
	c.items.Set(key(id), v, gocache.NoExpiration)
	c.fills.Add(1)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Items:     c.items.ItemCount(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Fills:     c.fills.Load(),
		Evictions: c.evictions.Load(),
	}
}
