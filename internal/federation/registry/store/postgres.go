package store

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"

	"github.com/lib/pq"
)

const createLocationsTable = `
	CREATE TABLE IF NOT EXISTS federation_locations (
		identifier TEXT PRIMARY KEY,
		urls       TEXT[] NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Postgres stores one row per location identifier. Save rewrites the table in
// a single transaction so a reader never sees a half-applied snapshot.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the backing table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createLocationsTable); err != nil {
		return fmt.Errorf("migrate federation_locations: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (map[string][]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT identifier, urls FROM federation_locations`)
	if err != nil {
		return nil, fmt.Errorf("query federation locations: %w", err)
	}
	defer rows.Close()

	entries := make(map[string][]string)
	for rows.Next() {
		var (
			identifier string
			urls       []string
		)
		if err := rows.Scan(&identifier, pq.Array(&urls)); err != nil {
			return nil, fmt.Errorf("scan federation location: %w", err)
		}
		entries[identifier] = urls
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate federation locations: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Save(ctx context.Context, entries map[string][]string) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM federation_locations`); err != nil {
		return fmt.Errorf("clear federation locations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO federation_locations (identifier, urls, updated_at)
		VALUES ($1, $2, now())
	`)
	if err != nil {
		return fmt.Errorf("prepare federation location insert: %w", err)
	}
	defer stmt.Close()

	for _, identifier := range slices.Sorted(maps.Keys(entries)) {
		if _, err = stmt.ExecContext(ctx, identifier, pq.Array(entries[identifier])); err != nil {
			return fmt.Errorf("insert federation location %q: %w", identifier, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit registry transaction: %w", err)
	}
	return nil
}
