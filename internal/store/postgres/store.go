// Package postgres keeps the worklist in a shared Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingrea/callsheet/internal/worklist"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "callsheet_worklist"

// Store is a worklist.Store over a pgx connection pool.
type Store struct {
	Pool   *pgxpool.Pool
	table  string
	schema worklist.Schema
}

// Connect opens a pool, pings it and ensures the worklist table exists.
func Connect(ctx context.Context, url string, schema worklist.Schema) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := &Store{Pool: pool, table: DefaultTable, schema: schema}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() { s.Pool.Close() }

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS `+s.ident()+` (
		position    INTEGER PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		phone       TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		last_login  TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT '',
		updated_at  TIMESTAMPTZ
	)`)
	return err
}

// FetchSnapshot reads every row ordered by position.
func (s *Store) FetchSnapshot(ctx context.Context) (worklist.Snapshot, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT position, name, phone, external_id, last_login, status FROM `+s.ident()+` ORDER BY position`)
	if err != nil {
		return worklist.Snapshot{}, worklist.ReadError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (worklist.Row, error) {
		var r worklist.Row
		err := row.Scan(&r.Position, &r.Name, &r.Phone, &r.ExternalID, &r.LastLogin, &r.Status)
		return r, err
	})
	if err != nil {
		return worklist.Snapshot{}, worklist.ReadError(err)
	}
	return worklist.FromRows(out, s.schema), nil
}

// WriteStatus stores the status token for the row at position.
func (s *Store) WriteStatus(ctx context.Context, position int, status worklist.Status) error {
	token, err := s.schema.Token(status)
	if err != nil {
		return worklist.WriteError(position, err)
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE `+s.ident()+` SET status = $1, updated_at = now() WHERE position = $2`,
		token, position)
	if err != nil {
		return worklist.WriteError(position, err)
	}
	if tag.RowsAffected() == 0 {
		return worklist.WriteError(position, errors.New("no such row"))
	}
	return nil
}

// Import upserts rows by position in one batch and returns how many were written.
func (s *Store) Import(ctx context.Context, rows []worklist.Row) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO `+s.ident()+` (position, name, phone, external_id, last_login, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (position) DO UPDATE SET
			  name = EXCLUDED.name, phone = EXCLUDED.phone, external_id = EXCLUDED.external_id,
			  last_login = EXCLUDED.last_login, status = EXCLUDED.status`,
			r.Position, r.Name, r.Phone, r.ExternalID, r.LastLogin, r.Status)
	}
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: import: %w", err)
	}
	return len(rows), nil
}
