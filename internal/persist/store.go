package persist

import (
	"context"
	"time"

	"github.com/l1jgo/bestiary/internal/creature"
)

// Querier is the record store contract the bestiary core consumes. Every
// Store implementation hands a Querier bound to one transaction to InTx
// callbacks; the Store itself runs each call in its own transaction.
type Querier interface {
	FindByID(ctx context.Context, id int32) (creature.Creature, bool, error)
	FindByType(ctx context.Context, typ string) ([]creature.Creature, error)
	// Save inserts c when c.ID is zero and returns it with the assigned id,
	// otherwise it updates the existing row.
	Save(ctx context.Context, c creature.Creature) (creature.Creature, error)
	SaveAll(ctx context.Context, cs []creature.Creature) ([]creature.Creature, error)
	DeleteByID(ctx context.Context, id int32) error
	Delete(ctx context.Context, c creature.Creature) error
	ExistsByID(ctx context.Context, id int32) (bool, error)
	Count(ctx context.Context) (int, error)

	RecordBattle(ctx context.Context, rec BattleRecord) error
	// BattleHistory returns up to limit records, newest first.
	BattleHistory(ctx context.Context, limit int) ([]BattleRecord, error)
}

// Store is a Querier that can also scope several calls into one transaction.
// InTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
	Close() error
}

// BattleRecord is one decided battle, appended in the same transaction that
// promotes the winner and removes the loser. WinnerID and LoserID are zero
// on a draw.
type BattleRecord struct {
	ID         int64     `json:"id"`
	AttackerID int32     `json:"attacker_id"`
	DefenderID int32     `json:"defender_id"`
	WinnerID   int32     `json:"winner_id,omitempty"`
	LoserID    int32     `json:"loser_id,omitempty"`
	Draw       bool      `json:"draw"`
	FoughtAt   time.Time `json:"fought_at"`
}
