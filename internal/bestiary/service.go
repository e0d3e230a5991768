// Package bestiary is the creature service: a read-through cache in front of
// the record store, an async read path on a worker pool, and the mutation
// operations that keep the cache coherent with the store.
//
// Every mutation commits its store transaction before evicting the affected
// cache entries, and the cache refuses fills from reads that were in flight
// across an eviction, so a reader never re-populates a value older than the
// last committed write.
package bestiary

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/bestiary/internal/async"
	"github.com/l1jgo/bestiary/internal/battle"
	"github.com/l1jgo/bestiary/internal/cache"
	"github.com/l1jgo/bestiary/internal/creature"
	"github.com/l1jgo/bestiary/internal/persist"
	"go.uber.org/zap"
)

// Deps holds the collaborators of a Service.
type Deps struct {
	Store persist.Store
	Cache *cache.Cache
	Pool  *async.Pool
	// Reward overrides battle.DefaultReward when set.
	Reward battle.RewardFunc
	// Latency is the simulated backend delay paid once per cache miss.
	Latency time.Duration
	Log     *zap.Logger
}

type Service struct {
	store   persist.Store
	cache   *cache.Cache
	pool    *async.Pool
	reward  battle.RewardFunc
	latency time.Duration
	locks   *lockSet
	log     *zap.Logger
}

func New(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := deps.Cache
	if c == nil {
		c = cache.New(log)
	}
	return &Service{
		store:   deps.Store,
		cache:   c,
		pool:    deps.Pool,
		reward:  deps.Reward,
		latency: deps.Latency,
		locks:   newLockSet(),
		log:     log,
	}
}

// CacheStats reports the cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Seed adds cs when the store holds no creatures yet and reports how many
// were added.
func (s *Service) Seed(ctx context.Context, cs []creature.Creature) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: count creatures: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, c := range cs {
		if _, err := s.Add(ctx, c); err != nil {
			return i, fmt.Errorf("seed: %w", err)
		}
	}
	return len(cs), nil
}
