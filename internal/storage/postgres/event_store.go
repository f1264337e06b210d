// Package postgres records scrape progress events in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/embassy-scraper/internal/progress"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "scrape_events"

// Config controls the Postgres connection pool used for event rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// EventStore writes one row per progress event. It satisfies progress.Sink.
type EventStore struct {
	pool  execCloser
	table string
}

// NewEventStore creates a Postgres-backed EventStore using the provided config.
func NewEventStore(ctx context.Context, cfg Config) (*EventStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &EventStore{pool: pool, table: table}, nil
}

// NewEventStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEventStoreWithPool(pool execCloser, table string) (*EventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &EventStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the event table when it does not exist yet.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	run_id UUID NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	stage TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	object TEXT NOT NULL DEFAULT '',
	bytes BIGINT NOT NULL DEFAULT 0,
	jobs INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	note TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Consume inserts the batch row by row and stops at the first failure.
func (s *EventStore) Consume(ctx context.Context, batch []progress.Event) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			run_id, ts, stage, country, url, object, bytes, jobs, duration_ms, note
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, s.table)
	for _, evt := range batch {
		_, err := s.pool.Exec(
			ctx,
			query,
			evt.RunID,
			evt.TS,
			string(evt.Stage),
			evt.Country,
			evt.URL,
			evt.Object,
			evt.Bytes,
			evt.Count,
			evt.Dur.Milliseconds(),
			evt.Note,
		)
		if err != nil {
			return fmt.Errorf("insert %s event: %w", evt.Stage, err)
		}
	}
	return nil
}

// Close releases the underlying pool.
func (s *EventStore) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
