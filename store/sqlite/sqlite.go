/*
Package sqlite provides a SQLite-backed implementation of facts.Store.

PURPOSE:
  Default durable backend. One table, one row per (user_id, data_type).

KEY TABLES:
  user_facts: latest value of every fact

INDEXES:
  - idx_user_facts_user_type (UNIQUE): lookup + upsert conflict target
  - idx_user_facts_updated_at: recency queries

UPSERT:
  Every write is a single INSERT ... ON CONFLICT(user_id, data_type)
  DO UPDATE statement. SQLite serializes writers, so same-pair writes
  are applied in commit order; created_at is never touched by the update
  branch.

SEEDING:
  The connection string sets _txlock=immediate, so the seed transaction
  takes the write lock at BEGIN. The "zero facts?" check and the inserts
  therefore cannot interleave with another seed for the same user.

TIMESTAMPS:
  Stored as fixed-width UTC text so lexical order equals time order.

WAL MODE:
  Opened with WAL and a busy timeout: readers don't block the writer and
  a contended writer waits instead of failing with "database is locked".

USAGE:
  store, err := sqlite.New("./data/workfacts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - facts/store.go: interface definition
  - facts/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/workfacts/facts"
)

// Store implements facts.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ facts.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		data_type TEXT NOT NULL,
		value REAL NOT NULL DEFAULT 0,
		value_text TEXT,
		unit TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_facts_user_type
		ON user_facts(user_id, data_type);
	CREATE INDEX IF NOT EXISTS idx_user_facts_updated_at
		ON user_facts(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FACT STORE (facts.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SeedIfEmpty inserts records if the user has no rows.
func (s *Store) SeedIfEmpty(ctx context.Context, userID string, records []facts.Record) (bool, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var count int
	if err := sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_facts WHERE user_id = ?", userID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count facts: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	query := `
		INSERT INTO user_facts
		(user_id, data_type, value, value_text, unit, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, data_type) DO NOTHING
	`
	for _, r := range records {
		if err := insert(ctx, sqlTx, query, r); err != nil {
			return false, err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}
	return true, nil
}

// Upsert replaces or inserts one fact.
func (s *Store) Upsert(ctx context.Context, rec facts.Record) error {
	query := `
		INSERT INTO user_facts
		(user_id, data_type, value, value_text, unit, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, data_type) DO UPDATE SET
			value = excluded.value,
			value_text = excluded.value_text,
			unit = excluded.unit,
			description = excluded.description,
			updated_at = excluded.updated_at
	`
	return insert(ctx, s.db, query, rec)
}

func insert(ctx context.Context, db execer, query string, r facts.Record) error {
	number, text := columns(r.Value)
	_, err := db.ExecContext(ctx, query,
		r.UserID,
		r.DataType,
		number,
		text,
		r.Unit,
		r.Description,
		facts.FormatTimestamp(r.CreatedAt),
		facts.FormatTimestamp(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write fact %s/%s: %w", r.UserID, r.DataType, err)
	}
	return nil
}

// Get returns the most recently updated row for the pair.
func (s *Store) Get(ctx context.Context, userID, dataType string) (facts.Record, error) {
	query := `
		SELECT user_id, data_type, value, value_text, unit, description, created_at, updated_at
		FROM user_facts
		WHERE user_id = ? AND data_type = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`
	rows, err := s.db.QueryContext(ctx, query, userID, dataType)
	if err != nil {
		return facts.Record{}, fmt.Errorf("failed to query fact: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return facts.Record{}, err
		}
		return facts.Record{}, &facts.NotFoundError{Kind: "fact", ID: userID + "/" + dataType}
	}
	return scanRecord(rows)
}

// List returns, per data type, the row with the greatest updated_at.
func (s *Store) List(ctx context.Context, userID string) ([]facts.Record, error) {
	query := `
		SELECT f.user_id, f.data_type, f.value, f.value_text, f.unit, f.description,
		       f.created_at, f.updated_at
		FROM user_facts f
		WHERE f.user_id = ?
		  AND f.updated_at = (
			SELECT MAX(g.updated_at) FROM user_facts g
			WHERE g.user_id = f.user_id AND g.data_type = f.data_type
		  )
		ORDER BY f.data_type ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	result := []facts.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanRecord(rows *sql.Rows) (facts.Record, error) {
	var (
		rec       facts.Record
		number    float64
		text      sql.NullString
		createdAt string
		updatedAt string
	)
	if err := rows.Scan(&rec.UserID, &rec.DataType, &number, &text,
		&rec.Unit, &rec.Description, &createdAt, &updatedAt); err != nil {
		return rec, fmt.Errorf("failed to scan fact: %w", err)
	}

	rec.Value = fromColumns(number, text)
	var err error
	if rec.CreatedAt, err = time.Parse(facts.TimestampLayout, createdAt); err != nil {
		return rec, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if rec.UpdatedAt, err = time.Parse(facts.TimestampLayout, updatedAt); err != nil {
		return rec, fmt.Errorf("bad updated_at %q: %w", updatedAt, err)
	}
	return rec, nil
}

// Helper functions

func columns(v facts.Value) (float64, sql.NullString) {
	if v.Kind == facts.KindDate {
		return 0, sql.NullString{String: v.Text, Valid: true}
	}
	return v.Number, sql.NullString{}
}

func fromColumns(number float64, text sql.NullString) facts.Value {
	if text.Valid {
		return facts.DateValue(text.String)
	}
	return facts.NumberValue(number)
}
