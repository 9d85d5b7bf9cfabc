// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/spcut/internal/persistence/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS jobs_expires_at ON jobs (expires_at);
`

// SQLiteStore keeps records as JSON rows. expires_at is a unix-nano deadline,
// 0 meaning never; expired rows are invisible and purged on write.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenSQLiteStore opens the database file at path and ensures the schema.
func OpenSQLiteStore(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate jobs schema: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

func (s *SQLiteStore) expiresAt() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return now().Add(s.ttl).UnixNano()
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE expires_at > 0 AND expires_at < ?`, now().UnixNano()); err != nil {
		return fmt.Errorf("purge expired jobs: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, record, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record = excluded.record, expires_at = excluded.expires_at`,
		rec.ID, string(buf), s.expiresAt())
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	return s.get(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q queryRower, id string) (Record, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT record FROM jobs WHERE id = ? AND (expires_at = 0 OR expires_at >= ?)`,
		id, now().UnixNano()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select job: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*Record) error) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.get(ctx, tx, id)
	if err != nil {
		return Record{}, err
	}
	if err := fn(&rec); err != nil {
		return Record{}, err
	}
	rec.UpdatedAt = now()
	buf, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal job: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET record = ?, expires_at = ? WHERE id = ?`,
		string(buf), s.expiresAt(), id); err != nil {
		return Record{}, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Ping verifies connectivity and runs a quick integrity check.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return sqlite.QuickCheck(ctx, s.db)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
