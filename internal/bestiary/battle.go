package bestiary

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/bestiary/internal/battle"
	"github.com/l1jgo/bestiary/internal/creature"
	"github.com/l1jgo/bestiary/internal/persist"
	"go.uber.org/zap"
)

// Battle fights attackerID against defenderID as one store transaction: the
// stronger creature is promoted and saved, the weaker one is deleted, and the
// fight is logged. Equal power is a draw and changes no creature. Both cache
// entries are evicted whatever the result.
func (s *Service) Battle(ctx context.Context, attackerID, defenderID int32) (battle.Outcome, error) {
	if attackerID == defenderID {
		return battle.Outcome{}, &creature.ValidationError{Field: "defender", Reason: "a creature cannot battle itself"}
	}
	s.log.Info("the battle has started", zap.Int32("attacker", attackerID), zap.Int32("defender", defenderID))

	unlock := s.locks.lock(attackerID, defenderID)
	defer unlock()
	defer func() {
		s.cache.Evict(attackerID)
		s.cache.Evict(defenderID)
	}()

	var out battle.Outcome
	err := s.store.InTx(ctx, func(q persist.Querier) error {
		attacker, defender, err := loadPair(ctx, q, attackerID, defenderID)
		if err != nil {
			return err
		}

		if out, err = battle.Decide(attacker, defender, s.reward); err != nil {
			return err
		}
		rec := persist.BattleRecord{AttackerID: attackerID, DefenderID: defenderID, Draw: out.Draw, FoughtAt: time.Now()}
		if out.Draw {
			s.log.Info("nothing happened, draw", zap.Int32("attacker", attackerID), zap.Int32("defender", defenderID))
			return q.RecordBattle(ctx, rec)
		}

		winner, err := q.Save(ctx, out.Winner)
		if err != nil {
			return fmt.Errorf("save winner %d: %w", out.Winner.ID, err)
		}
		out.Winner = winner
		if err := q.Delete(ctx, out.Loser); err != nil {
			return fmt.Errorf("delete loser %d: %w", out.Loser.ID, err)
		}
		rec.WinnerID, rec.LoserID = out.Winner.ID, out.Loser.ID
		return q.RecordBattle(ctx, rec)
	})
	if err != nil {
		return battle.Outcome{}, err
	}
	if !out.Draw {
		s.log.Info("battle won",
			zap.Int32("winner", out.Winner.ID),
			zap.Int32("loser", out.Loser.ID),
			zap.Int32("power", out.Winner.Power),
			zap.Int32("level", out.Winner.Level),
		)
	}
	return out, nil
}

// loadPair reads both creatures lowest id first, matching the lock order,
// and reports a missing attacker before a missing defender.
func loadPair(ctx context.Context, q persist.Querier, attackerID, defenderID int32) (attacker, defender creature.Creature, err error) {
	type row struct {
		c     creature.Creature
		found bool
	}
	rows := make(map[int32]row, 2)
	order := []int32{attackerID, defenderID}
	if defenderID < attackerID {
		order = []int32{defenderID, attackerID}
	}
	for _, id := range order {
		c, found, err := q.FindByID(ctx, id)
		if err != nil {
			return creature.Creature{}, creature.Creature{}, err
		}
		rows[id] = row{c: c, found: found}
	}
	for _, id := range []int32{attackerID, defenderID} {
		if !rows[id].found {
			return creature.Creature{}, creature.Creature{}, &creature.NotFoundError{ID: id}
		}
	}
	return rows[attackerID].c, rows[defenderID].c, nil
}

// BattleHistory returns up to limit logged battles, newest first.
func (s *Service) BattleHistory(ctx context.Context, limit int) ([]persist.BattleRecord, error) {
	recs, err := s.store.BattleHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("battle history: %w", err)
	}
	if recs == nil {
		recs = []persist.BattleRecord{}
	}
	return recs, nil
}
