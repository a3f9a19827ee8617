// Package sqlite keeps the worklist in a local SQLite file, for desks that
// work from a CSV export instead of the live sheet.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/callsheet/internal/worklist"

	_ "modernc.org/sqlite"
)

// Store is a worklist.Store over a SQLite database in WAL mode.
type Store struct {
	db     *sql.DB
	schema worklist.Schema
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string, schema worklist.Schema) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, schema: schema}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS worklist (
		position    INTEGER PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		phone       TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		last_login  TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT '',
		updated_at  TEXT
	);
	`)
	return err
}

// FetchSnapshot reads every row ordered by position.
func (s *Store) FetchSnapshot(ctx context.Context) (worklist.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, name, phone, external_id, last_login, status
		 FROM worklist ORDER BY position`)
	if err != nil {
		return worklist.Snapshot{}, worklist.ReadError(err)
	}
	defer rows.Close()

	var out []worklist.Row
	for rows.Next() {
		var r worklist.Row
		if err := rows.Scan(&r.Position, &r.Name, &r.Phone, &r.ExternalID, &r.LastLogin, &r.Status); err != nil {
			return worklist.Snapshot{}, worklist.ReadError(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
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
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = retryOnContention(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE worklist SET status = ?, updated_at = ? WHERE position = ?`,
			token, now, position)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errNoRow
		}
		return nil
	})
	return worklist.WriteError(position, err)
}

// Import upserts rows by position and returns how many were written.
func (s *Store) Import(ctx context.Context, rows []worklist.Row) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin import: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO worklist (position, name, phone, external_id, last_login, status)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(position) DO UPDATE SET
		   name = excluded.name, phone = excluded.phone, external_id = excluded.external_id,
		   last_login = excluded.last_login, status = excluded.status`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare import: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Position, r.Name, r.Phone, r.ExternalID, r.LastLogin, r.Status); err != nil {
			return 0, fmt.Errorf("sqlite: import row %d: %w", r.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit import: %w", err)
	}
	return len(rows), nil
}

var errNoRow = errors.New("no such row")
