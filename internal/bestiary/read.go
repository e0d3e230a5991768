package bestiary

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/bestiary/internal/async"
	"github.com/l1jgo/bestiary/internal/creature"
	"go.uber.org/zap"
)

// GetDetails returns the creature with id, from the cache when possible.
// A miss pays the simulated backend latency and one store lookup, shared by
// every concurrent caller of the same id.
func (s *Service) GetDetails(ctx context.Context, id int32) (creature.Creature, error) {
	return s.cache.Load(ctx, id, func(ctx context.Context) (creature.Creature, error) {
		s.log.Info("loading creature details, must occur once", zap.Int32("id", id))
		s.simulateSlowBackend(ctx)

		c, found, err := s.store.FindByID(ctx, id)
		if err != nil {
			return creature.Creature{}, fmt.Errorf("get details %d: %w", id, err)
		}
		if !found {
			return creature.Creature{}, &creature.NotFoundError{ID: id}
		}
		return c, nil
	})
}

// GetDetailsAsync runs GetDetails on the worker pool and returns at once.
// The returned future can be cancelled until a worker picks the call up.
func (s *Service) GetDetailsAsync(ctx context.Context, id int32) (*async.Future[creature.Creature], error) {
	if s.pool == nil {
		return nil, async.ErrPoolClosed
	}
	return async.Submit(ctx, s.pool, func(ctx context.Context) (creature.Creature, error) {
		s.log.Info("async loading creature details",
			zap.String("worker", async.WorkerName(ctx)),
			zap.Int32("id", id),
		)
		return s.GetDetails(ctx, id)
	})
}

// FindByType returns all creatures of typ straight from the store; the
// result is never cached.
func (s *Service) FindByType(ctx context.Context, typ string) ([]creature.Creature, error) {
	typ = creature.NormalizeType(typ)
	s.log.Info("finding creatures by type", zap.String("type", typ))
	cs, err := s.store.FindByType(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("find by type: %w", err)
	}
	if cs == nil {
		cs = []creature.Creature{}
	}
	return cs, nil
}

// simulateSlowBackend waits out the configured latency. An interrupted wait
// is not an error; the lookup simply proceeds early.
func (s *Service) simulateSlowBackend(ctx context.Context) {
	if s.latency <= 0 {
		return
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		s.log.Debug("simulated latency interrupted", zap.Error(ctx.Err()))
	}
}
