package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/bestiary/internal/config"
	"github.com/l1jgo/bestiary/internal/creature"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is the embedded single-file Store. It keeps one open
// connection, which serializes writers the same way SQLite itself would.
type SQLiteStore struct {
	db *sql.DB
	sqliteRows
}

func OpenSQLite(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*SQLiteStore, error) {
	dsn := cfg.DSN
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}

	log.Debug("sqlite store ready", zap.String("dsn", dsn))
	return &SQLiteStore{db: db, sqliteRows: sqliteRows{q: db}}, nil
}

// DB exposes the handle for migrations.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("creature tx begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(sqliteRows{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteRows struct {
	q sqlQuerier
}

func (p sqliteRows) FindByID(ctx context.Context, id int32) (creature.Creature, bool, error) {
	var c creature.Creature
	err := p.q.QueryRowContext(ctx,
		`SELECT id, name, type, level, power FROM creatures WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Type, &c.Level, &c.Power)
	if errors.Is(err, sql.ErrNoRows) {
		return creature.Creature{}, false, nil
	}
	if err != nil {
		return creature.Creature{}, false, fmt.Errorf("find creature %d: %w", id, err)
	}
	return c, true, nil
}

func (p sqliteRows) FindByType(ctx context.Context, typ string) ([]creature.Creature, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, name, type, level, power FROM creatures WHERE type = ? ORDER BY id`, typ,
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

func (p sqliteRows) Save(ctx context.Context, c creature.Creature) (creature.Creature, error) {
	if c.ID == 0 {
		res, err := p.q.ExecContext(ctx,
			`INSERT INTO creatures (name, type, level, power) VALUES (?, ?, ?, ?)`,
			c.Name, c.Type, c.Level, c.Power,
		)
		if err != nil {
			return creature.Creature{}, fmt.Errorf("insert creature: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return creature.Creature{}, fmt.Errorf("insert creature: %w", err)
		}
		c.ID = int32(id)
		return c, nil
	}
	res, err := p.q.ExecContext(ctx,
		`UPDATE creatures SET name = ?, type = ?, level = ?, power = ? WHERE id = ?`,
		c.Name, c.Type, c.Level, c.Power, c.ID,
	)
	if err != nil {
		return creature.Creature{}, fmt.Errorf("update creature %d: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return creature.Creature{}, fmt.Errorf("update creature %d: %w", c.ID, &creature.NotFoundError{ID: c.ID})
	}
	return c, nil
}

func (p sqliteRows) SaveAll(ctx context.Context, cs []creature.Creature) ([]creature.Creature, error) {
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

func (p sqliteRows) DeleteByID(ctx context.Context, id int32) error {
	if _, err := p.q.ExecContext(ctx, `DELETE FROM creatures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete creature %d: %w", id, err)
	}
	return nil
}

func (p sqliteRows) Delete(ctx context.Context, c creature.Creature) error {
	return p.DeleteByID(ctx, c.ID)
}

func (p sqliteRows) ExistsByID(ctx context.Context, id int32) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM creatures WHERE id = ?)`, id,
	).Scan(&exists)
	return exists, err
}

func (p sqliteRows) Count(ctx context.Context) (int, error) {
	var n int
	err := p.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM creatures`).Scan(&n)
	return n, err
}

func (p sqliteRows) RecordBattle(ctx context.Context, rec BattleRecord) error {
	if rec.FoughtAt.IsZero() {
		rec.FoughtAt = time.Now()
	}
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO battle_log (attacker_id, defender_id, winner_id, loser_id, draw, fought_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AttackerID, rec.DefenderID, nullableID(rec.WinnerID), nullableID(rec.LoserID), rec.Draw,
		rec.FoughtAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("battle log insert: %w", err)
	}
	return nil
}

func (p sqliteRows) BattleHistory(ctx context.Context, limit int) ([]BattleRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := p.q.QueryContext(ctx,
		`SELECT id, attacker_id, defender_id, COALESCE(winner_id, 0), COALESCE(loser_id, 0), draw, fought_at
		 FROM battle_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("battle history: %w", err)
	}
	defer rows.Close()

	var result []BattleRecord
	for rows.Next() {
		var (
			b        BattleRecord
			foughtAt string
		)
		if err := rows.Scan(&b.ID, &b.AttackerID, &b.DefenderID, &b.WinnerID, &b.LoserID, &b.Draw, &foughtAt); err != nil {
			return nil, err
		}
		if b.FoughtAt, err = time.Parse(time.RFC3339Nano, foughtAt); err != nil {
			return nil, fmt.Errorf("battle history: fought_at %q: %w", foughtAt, err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
