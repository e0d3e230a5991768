package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/l1jgo/bestiary/internal/creature"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreatureRepo is the PostgreSQL Store.
type CreatureRepo struct {
	db *DB
	pgRows
}

func NewCreatureRepo(db *DB) *CreatureRepo {
	return &CreatureRepo{db: db, pgRows: pgRows{q: db.Pool}}
}

// InTx runs fn inside one transaction. Reads issued through the Querier
// passed to fn lock the rows they return until commit.
func (r *CreatureRepo) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("creature tx begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(pgRows{q: tx, forUpdate: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CreatureRepo) Close() error {
	r.db.Close()
	return nil
}

type pgRows struct {
	q         pgQuerier
	forUpdate bool
}

func (p pgRows) lockClause() string {
	if p.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (p pgRows) FindByID(ctx context.Context, id int32) (creature.Creature, bool, error) {
	var c creature.Creature
	err := p.q.QueryRow(ctx,
		`SELECT id, name, type, level, power FROM creatures WHERE id = $1`+p.lockClause(), id,
	).Scan(&c.ID, &c.Name, &c.Type, &c.Level, &c.Power)
	if errors.Is(err, pgx.ErrNoRows) {
		return creature.Creature{}, false, nil
	}
	if err != nil {
		return creature.Creature{}, false, fmt.Errorf("find creature %d: %w", id, err)
	}
	return c, true, nil
}

func (p pgRows) FindByType(ctx context.Context, typ string) ([]creature.Creature, error) {
	rows, err := p.q.Query(ctx,
		`SELECT id, name, type, level, power FROM creatures WHERE type = $1 ORDER BY id`+p.lockClause(), typ,
	)
	if err != nil {
		return nil, fmt.Errorf("find creatures by type %q: %w", typ, err)
	}
	defer rows.Close()

	var result []creature.Creature
	for rows.Next() {
		var c creature.Creature
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Level, &c.Power); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (p pgRows) Save(ctx context.Context, c creature.Creature) (creature.Creature, error) {
	if c.ID == 0 {
		err := p.q.QueryRow(ctx,
			`INSERT INTO creatures (name, type, level, power) VALUES ($1, $2, $3, $4) RETURNING id`,
			c.Name, c.Type, c.Level, c.Power,
		).Scan(&c.ID)
		if err != nil {
			return creature.Creature{}, fmt.Errorf("insert creature: %w", err)
		}
		return c, nil
	}
	tag, err := p.q.Exec(ctx,
		`UPDATE creatures SET name = $1, type = $2, level = $3, power = $4 WHERE id = $5`,
		c.Name, c.Type, c.Level, c.Power, c.ID,
	)
	if err != nil {
		return creature.Creature{}, fmt.Errorf("update creature %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return creature.Creature{}, fmt.Errorf("update creature %d: %w", c.ID, &creature.NotFoundError{ID: c.ID})
	}
	return c, nil
}

// SaveAll must run inside InTx to be atomic; on the bare pool each row
// commits on its own.
func (p pgRows) SaveAll(ctx context.Context, cs []creature.Creature) ([]creature.Creature, error) {
	result := make([]creature.Creature, 0, len(cs))
	for _, c := range cs {
		saved, err := p.Save(ctx, c)
		if err != nil {
			return nil, err
		}
		result = append(result, saved)
	}
	return result, nil
}

func (p pgRows) DeleteByID(ctx context.Context, id int32) error {
	if _, err := p.q.Exec(ctx, `DELETE FROM creatures WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete creature %d: %w", id, err)
	}
	return nil
}

func (p pgRows) Delete(ctx context.Context, c creature.Creature) error {
	return p.DeleteByID(ctx, c.ID)
}

func (p pgRows) ExistsByID(ctx context.Context, id int32) (bool, error) {
	var exists bool
	err := p.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM creatures WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

func (p pgRows) Count(ctx context.Context) (int, error) {
	var n int
	err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM creatures`).Scan(&n)
	return n, err
}

func (p pgRows) RecordBattle(ctx context.Context, rec BattleRecord) error {
	_, err := p.q.Exec(ctx,
		`INSERT INTO battle_log (attacker_id, defender_id, winner_id, loser_id, draw)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.AttackerID, rec.DefenderID, nullableID(rec.WinnerID), nullableID(rec.LoserID), rec.Draw,
	)
	if err != nil {
		return fmt.Errorf("battle log insert: %w", err)
	}
	return nil
}

func (p pgRows) BattleHistory(ctx context.Context, limit int) ([]BattleRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := p.q.Query(ctx,
		`SELECT id, attacker_id, defender_id, COALESCE(winner_id, 0), COALESCE(loser_id, 0), draw, fought_at
		 FROM battle_log ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("battle history: %w", err)
	}
	defer rows.Close()

	var result []BattleRecord
	for rows.Next() {
		var b BattleRecord
		if err := rows.Scan(&b.ID, &b.AttackerID, &b.DefenderID, &b.WinnerID, &b.LoserID, &b.Draw, &b.FoughtAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

const defaultHistoryLimit = 100

func nullableID(id int32) *int32 {
	if id == 0 {
		return nil
	}
	return &id
}
