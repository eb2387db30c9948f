/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package postgres stores state in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/storage"
	"github.com/Seednode/secretsanta/internal/storage/migrations"
)

const (
	selectPayload = `SELECT payload FROM app_state WHERE namespace = $1`
	upsertPayload = `INSERT INTO app_state (namespace, payload, updated_at)
			  VALUES ($1, $2, now())
			  ON CONFLICT (namespace) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

// pgxAPI is the subset of *pgxpool.Pool used by Store.
type pgxAPI interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ storage.Backend = (*Store)(nil)

type Store struct {
	db pgxAPI
}

// Open connects to dsn, applies migrations and returns a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return NewWithAPI(pool), nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrations.Up(db, "postgres")
}

// NewWithAPI allows injecting a mockable API (used in tests).
func NewWithAPI(db pgxAPI) *Store {
	return &Store{db: db}
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	var payload string

	err := s.db.QueryRow(ctx, selectPayload, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	return []byte(payload), nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, upsertPayload, key, string(value)); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
