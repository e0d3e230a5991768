package bestiary

import (
	"context"
	"fmt"

	"github.com/l1jgo/bestiary/internal/creature"
	"github.com/l1jgo/bestiary/internal/persist"
	"go.uber.org/zap"
)

// maxTrainingIntensity is the hardest training a creature accepts; anything
// above it is refused, and training at exactly this intensity levels up.
const maxTrainingIntensity = 100

// Add stores a new creature. Any id on c is discarded; the store assigns one.
func (s *Service) Add(ctx context.Context, c creature.Creature) (creature.Creature, error) {
	c = c.Normalize()
	c.ID = 0
	if err := c.Validate(); err != nil {
		return creature.Creature{}, err
	}
	s.log.Info("saving creature", zap.String("name", c.Name), zap.String("type", c.Type))
	saved, err := s.store.Save(ctx, c)
	if err != nil {
		return creature.Creature{}, fmt.Errorf("add creature: %w", err)
	}
	return saved, nil
}

func (s *Service) UpdateLevel(ctx context.Context, id, level int32) (creature.Creature, error) {
	if level < 0 {
		return creature.Creature{}, &creature.ValidationError{Field: "level", Reason: "must not be negative"}
	}
	s.log.Info("updating level, cache will be cleaned", zap.Int32("id", id), zap.Int32("level", level))
	return s.mutate(ctx, id, func(c *creature.Creature) (bool, error) {
		c.Level = level
		return true, nil
	})
}

func (s *Service) UpdatePower(ctx context.Context, id, power int32) (creature.Creature, error) {
	if power < 0 {
		return creature.Creature{}, &creature.ValidationError{Field: "power", Reason: "must not be negative"}
	}
	s.log.Info("updating power, cache will be cleaned", zap.Int32("id", id), zap.Int32("power", power))
	return s.mutate(ctx, id, func(c *creature.Creature) (bool, error) {
		c.Power = power
		return true, nil
	})
}

// Train applies a training session. Intensity above 100 is refused and the
// creature comes back unchanged. Otherwise power grows by intensity only
// while it is not above intensity, and training at 100 also levels up.
func (s *Service) Train(ctx context.Context, id, intensity int32) (creature.Creature, error) {
	s.log.Info("training creature", zap.Int32("id", id), zap.Int32("intensity", intensity))
	return s.mutate(ctx, id, func(c *creature.Creature) (bool, error) {
		if intensity > maxTrainingIntensity {
			s.log.Warn("too intensive training", zap.Int32("id", id), zap.Int32("intensity", intensity))
			return false, nil
		}
		if c.Power <= intensity {
			c.Power += intensity
		}
		if intensity == maxTrainingIntensity {
			level, err := creature.AddStat("level", c.Level, 1)
			if err != nil {
				return false, err
			}
			c.Level = level
			s.log.Info("max intensity, level up", zap.Int32("id", id), zap.Int32("level", c.Level))
		}
		return true, nil
	})
}

// mutate loads id, lets fn change it and saves it when fn returns true. An
// error from fn aborts the transaction with nothing written. The cache entry
// is evicted after the transaction whenever a save was attempted.
func (s *Service) mutate(ctx context.Context, id int32, fn func(c *creature.Creature) (bool, error)) (creature.Creature, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	var (
		result creature.Creature
		wrote  bool
	)
	err := s.store.InTx(ctx, func(q persist.Querier) error {
		c, found, err := q.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return &creature.NotFoundError{ID: id}
		}
		write, err := fn(&c)
		if err != nil {
			return err
		}
		if !write {
			result = c
			return nil
		}
		wrote = true
		result, err = q.Save(ctx, c)
		return err
	})
	if wrote {
		s.cache.Evict(id)
	}
	if err != nil {
		return creature.Creature{}, err
	}
	return result, nil
}

// Delete removes the creature with id and its cache entry.
func (s *Service) Delete(ctx context.Context, id int32) error {
	s.log.Info("deleting creature, cache cleaned", zap.Int32("id", id))
	unlock := s.locks.lock(id)
	defer unlock()

	err := s.store.InTx(ctx, func(q persist.Querier) error {
		exists, err := q.ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return &creature.NotFoundError{ID: id}
		}
		return q.DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}
	s.cache.Evict(id)
	return nil
}

// BoostByType adds delta to the power of every creature of typ in one
// transaction and then clears the whole cache. With no creature of typ it
// returns an empty slice and leaves the cache alone.
func (s *Service) BoostByType(ctx context.Context, typ string, delta int32) ([]creature.Creature, error) {
	typ = creature.NormalizeType(typ)
	s.log.Info("boosting creatures by type", zap.String("type", typ), zap.Int32("delta", delta))
	unlock := s.locks.lockAll()
	defer unlock()

	var boosted []creature.Creature
	err := s.store.InTx(ctx, func(q persist.Querier) error {
		cs, err := q.FindByType(ctx, typ)
		if err != nil {
			return err
		}
		if len(cs) == 0 {
			return nil
		}
		for i := range cs {
			power, err := creature.AddStat("power", cs[i].Power, delta)
			if err != nil {
				return fmt.Errorf("boost creature %d: %w", cs[i].ID, err)
			}
			cs[i].Power = power
		}
		boosted, err = q.SaveAll(ctx, cs)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(boosted) == 0 {
		s.log.Warn("no creature found for type", zap.String("type", typ))
		return []creature.Creature{}, nil
	}
	s.cache.EvictAll()
	return boosted, nil
}
