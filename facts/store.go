/*
store.go - Persistence port for fact records

PURPOSE:
  Defines the interface between the fact service and a database. Different
  implementations use SQLite, PostgreSQL, or in-memory storage.

SINGLE ROW PER KEY:
  A store keeps one row per (user_id, data_type). Upsert is a true
  replace-or-insert: concurrent writers of the same pair serialize inside
  the store and the last commit wins. Writers of different pairs do not
  wait on each other.

SEEDING:
  SeedIfEmpty checks "user has zero facts" and inserts the defaults as one
  atomic step, so two first-contact requests cannot both seed.

ERRORS:
  Get returns a *NotFoundError when the pair does not exist. Driver
  failures come back as *StorageError.

IMPLEMENTATIONS:
  - store/sqlite: default durable backend
  - store/postgres: PostgreSQL via sqlx
  - facts/store: in-memory, for tests and throwaway runs
*/
package facts

import "context"

// Store persists fact records.
type Store interface {
	// SeedIfEmpty inserts records only if userID has no facts at all.
	// Reports whether it inserted.
	SeedIfEmpty(ctx context.Context, userID string, records []Record) (bool, error)

	// Upsert writes one record. An existing row keeps its CreatedAt.
	Upsert(ctx context.Context, rec Record) error

	// Get returns the latest record for the pair.
	Get(ctx context.Context, userID, dataType string) (Record, error)

	// List returns the latest record per data type, ordered by data type.
	List(ctx context.Context, userID string) ([]Record, error)

	Ping(ctx context.Context) error
	Close() error
}
