// Package postgres records archived harvest runs in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable receives run rows when no table is configured.
const DefaultTable = "harvest_runs"

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// RunRecord is one archived analysis run.
type RunRecord struct {
	ID            string
	Operation     string
	SeedURL       string
	StoreType     string
	PagesAnalyzed int
	PagesSupplied int
	Complete      bool
	Error         string
	BlobURI       string
	CreatedAt     time.Time
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// RunStore inserts run rows.
type RunStore struct {
	pool  execCloser
	table string
}

// NewRunStore connects a pgx pool using cfg.
//
// Expected schema:
//
//	CREATE TABLE harvest_runs (
//		id             UUID PRIMARY KEY,
//		operation      TEXT NOT NULL,
//		seed_url       TEXT,
//		store_type     TEXT NOT NULL,
//		pages_analyzed INT NOT NULL,
//		pages_supplied INT NOT NULL,
//		complete       BOOLEAN NOT NULL,
//		error          TEXT,
//		blob_uri       TEXT,
//		created_at     TIMESTAMPTZ NOT NULL
//	);
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive.db_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool.
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the pool.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *RunStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	return s.pool.Ping(ctx)
}

// RecordRun inserts rec.
func (s *RunStore) RecordRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if rec.ID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	operation,
	seed_url,
	store_type,
	pages_analyzed,
	pages_supplied,
	complete,
	error,
	blob_uri,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	args := []any{
		rec.ID,
		rec.Operation,
		nullable(rec.SeedURL),
		rec.StoreType,
		rec.PagesAnalyzed,
		rec.PagesSupplied,
		rec.Complete,
		nullable(rec.Error),
		nullable(rec.BlobURI),
		rec.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
