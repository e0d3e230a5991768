package persist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/l1jgo/bestiary/internal/creature"
)

// MemoryStore is an in-process Store. Transactions are serialized on one
// mutex and staged in an overlay that is applied only on commit, so a failed
// callback leaves no partial state behind.
type MemoryStore struct {
	mu      sync.Mutex
	rows    map[int32]creature.Creature
	battles []BattleRecord
	nextID  int32
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int32]creature.Creature)}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store: closed")
	}

	tx := &memTx{store: s, staged: make(map[int32]*creature.Creature), nextID: s.nextID}
	if err := fn(tx); err != nil {
		return err
	}

	// commit
	for id, c := range tx.staged {
		if c == nil {
			delete(s.rows, id)
			continue
		}
		s.rows[id] = *c
	}
	s.nextID = tx.nextID
	for _, rec := range tx.battles {
		rec.ID = int64(len(s.battles) + 1)
		s.battles = append(s.battles, rec)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id int32) (c creature.Creature, found bool, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		c, found, err = q.FindByID(ctx, id)
		return err
	})
	return c, found, err
}

func (s *MemoryStore) FindByType(ctx context.Context, typ string) (cs []creature.Creature, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		cs, err = q.FindByType(ctx, typ)
		return err
	})
	return cs, err
}

func (s *MemoryStore) Save(ctx context.Context, c creature.Creature) (saved creature.Creature, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		saved, err = q.Save(ctx, c)
		return err
	})
	return saved, err
}

func (s *MemoryStore) SaveAll(ctx context.Context, cs []creature.Creature) (saved []creature.Creature, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		saved, err = q.SaveAll(ctx, cs)
		return err
	})
	return saved, err
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id int32) error {
	return s.InTx(ctx, func(q Querier) error { return q.DeleteByID(ctx, id) })
}

func (s *MemoryStore) Delete(ctx context.Context, c creature.Creature) error {
	return s.InTx(ctx, func(q Querier) error { return q.Delete(ctx, c) })
}

func (s *MemoryStore) ExistsByID(ctx context.Context, id int32) (ok bool, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		ok, err = q.ExistsByID(ctx, id)
		return err
	})
	return ok, err
}

func (s *MemoryStore) Count(ctx context.Context) (n int, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		n, err = q.Count(ctx)
		return err
	})
	return n, err
}

func (s *MemoryStore) RecordBattle(ctx context.Context, rec BattleRecord) error {
	return s.InTx(ctx, func(q Querier) error { return q.RecordBattle(ctx, rec) })
}

func (s *MemoryStore) BattleHistory(ctx context.Context, limit int) (recs []BattleRecord, err error) {
	err = s.InTx(ctx, func(q Querier) error {
		recs, err = q.BattleHistory(ctx, limit)
		return err
	})
	return recs, err
}

// memTx reads through its staged overlay into the parent rows. The parent
// mutex is held for the whole lifetime of a memTx.
type memTx struct {
	store   *MemoryStore
	staged  map[int32]*creature.Creature // nil value marks a delete
	battles []BattleRecord
	nextID  int32
}

func (tx *memTx) get(id int32) (creature.Creature, bool) {
	if c, ok := tx.staged[id]; ok {
		if c == nil {
			return creature.Creature{}, false
		}
		return *c, true
	}
	c, ok := tx.store.rows[id]
	return c, ok
}

func (tx *memTx) FindByID(_ context.Context, id int32) (creature.Creature, bool, error) {
	c, ok := tx.get(id)
	return c, ok, nil
}

func (tx *memTx) FindByType(_ context.Context, typ string) ([]creature.Creature, error) {
	seen := make(map[int32]struct{})
	var result []creature.Creature
	for id, c := range tx.staged {
		seen[id] = struct{}{}
		if c != nil && c.Type == typ {
			result = append(result, *c)
		}
	}
	for id, c := range tx.store.rows {
		if _, ok := seen[id]; ok {
			continue
		}
		if c.Type == typ {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tx *memTx) Save(_ context.Context, c creature.Creature) (creature.Creature, error) {
	if c.ID == 0 {
		tx.nextID++
		c.ID = tx.nextID
	} else if _, ok := tx.get(c.ID); !ok {
		return creature.Creature{}, fmt.Errorf("save creature %d: %w", c.ID, &creature.NotFoundError{ID: c.ID})
	}
	saved := c
	tx.staged[c.ID] = &saved
	return c, nil
}

func (tx *memTx) SaveAll(ctx context.Context, cs []creature.Creature) ([]creature.Creature, error) {
	result := make([]creature.Creature, 0, len(cs))
	for _, c := range cs {
		saved, err := tx.Save(ctx, c)
		if err != nil {
			return nil, err
		}
		result = append(result, saved)
	}
	return result, nil
}

func (tx *memTx) DeleteByID(_ context.Context, id int32) error {
	if _, ok := tx.get(id); ok {
		tx.staged[id] = nil
	}
	return nil
}

func (tx *memTx) Delete(ctx context.Context, c creature.Creature) error {
	return tx.DeleteByID(ctx, c.ID)
}

func (tx *memTx) ExistsByID(_ context.Context, id int32) (bool, error) {
	_, ok := tx.get(id)
	return ok, nil
}

func (tx *memTx) Count(_ context.Context) (int, error) {
	n := len(tx.store.rows)
	for id, c := range tx.staged {
		_, base := tx.store.rows[id]
		switch {
		case c == nil && base:
			n--
		case c != nil && !base:
			n++
		}
	}
	return n, nil
}

func (tx *memTx) RecordBattle(_ context.Context, rec BattleRecord) error {
	if rec.FoughtAt.IsZero() {
		rec.FoughtAt = time.Now()
	}
	tx.battles = append(tx.battles, rec)
	return nil
}

func (tx *memTx) BattleHistory(_ context.Context, limit int) ([]BattleRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	all := tx.store.battles
	var result []BattleRecord
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}
