// Package postgres provides a PostgreSQL implementation of facts.Store
// using sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/warp/workfacts/facts"
)

// Config holds connection settings.
type Config struct {
	DSN      string
	MaxConns int
	Timeout  time.Duration
}

// Store implements facts.Store on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ facts.Store = (*Store)(nil)

type factRow struct {
	UserID      string         `db:"user_id"`
	DataType    string         `db:"data_type"`
	Value       float64        `db:"value"`
	ValueText   sql.NullString `db:"value_text"`
	Unit        string         `db:"unit"`
	Description string         `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Open connects, verifies connectivity with a ping and ensures the table.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure table: %w", err)
	}
	return s, nil
}

// EnsureTable creates the user_facts table if not exists (idempotent).
func (s *Store) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_facts (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL,
  data_type TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL DEFAULT 0,
  value_text TEXT,
  unit TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_user_facts_user_type ON user_facts(user_id, data_type);
CREATE INDEX IF NOT EXISTS idx_user_facts_updated_at ON user_facts(updated_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const insertFact = `INSERT INTO user_facts
  (user_id, data_type, value, value_text, unit, description, created_at, updated_at)
  VALUES (:user_id, :data_type, :value, :value_text, :unit, :description, :created_at, :updated_at)`

// SeedIfEmpty holds a transaction-scoped advisory lock on the user id so
// the count check and the inserts are atomic against other seeders.
func (s *Store) SeedIfEmpty(ctx context.Context, userID string, records []facts.Record) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_facts WHERE user_id = $1`, userID); err != nil {
		return false, fmt.Errorf("count facts: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	for _, r := range records {
		if _, err := tx.NamedExecContext(ctx, insertFact+` ON CONFLICT (user_id, data_type) DO NOTHING`, toRow(r)); err != nil {
			return false, fmt.Errorf("seed %s: %w", r.DataType, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

func (s *Store) Upsert(ctx context.Context, rec facts.Record) error {
	q := insertFact + `
  ON CONFLICT (user_id, data_type) DO UPDATE SET
    value = EXCLUDED.value,
    value_text = EXCLUDED.value_text,
    unit = EXCLUDED.unit,
    description = EXCLUDED.description,
    updated_at = EXCLUDED.updated_at`
	if _, err := s.db.NamedExecContext(ctx, q, toRow(rec)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", rec.UserID, rec.DataType, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, dataType string) (facts.Record, error) {
	const q = `SELECT user_id, data_type, value, value_text, unit, description, created_at, updated_at
	  FROM user_facts WHERE user_id = $1 AND data_type = $2
	  ORDER BY updated_at DESC LIMIT 1`
	var row factRow
	if err := s.db.GetContext(ctx, &row, q, userID, dataType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return facts.Record{}, &facts.NotFoundError{Kind: "fact", ID: userID + "/" + dataType}
		}
		return facts.Record{}, fmt.Errorf("get fact: %w", err)
	}
	return row.record(), nil
}

// List uses DISTINCT ON to keep the newest row per data type.
func (s *Store) List(ctx context.Context, userID string) ([]facts.Record, error) {
	const q = `SELECT DISTINCT ON (data_type)
	    user_id, data_type, value, value_text, unit, description, created_at, updated_at
	  FROM user_facts WHERE user_id = $1
	  ORDER BY data_type ASC, updated_at DESC`
	var rows []factRow
	if err := s.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	out := make([]facts.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func toRow(r facts.Record) factRow {
	row := factRow{
		UserID:      r.UserID,
		DataType:    r.DataType,
		Unit:        r.Unit,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.Value.Kind == facts.KindDate {
		row.ValueText = sql.NullString{String: r.Value.Text, Valid: true}
	} else {
		row.Value = r.Value.Number
	}
	return row
}

func (r factRow) record() facts.Record {
	rec := facts.Record{
		UserID:      r.UserID,
		DataType:    r.DataType,
		Unit:        r.Unit,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.ValueText.Valid {
		rec.Value = facts.DateValue(r.ValueText.String)
	} else {
		rec.Value = facts.NumberValue(r.Value)
	}
	return rec
}
