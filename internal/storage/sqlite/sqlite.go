/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sqlite stores state in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/storage"
	"github.com/Seednode/secretsanta/internal/storage/migrations"
)

const (
	selectPayload = `SELECT payload FROM app_state WHERE namespace = ?`
	upsertPayload = `INSERT INTO app_state (namespace, payload, updated_at)
			  VALUES (?, ?, CURRENT_TIMESTAMP)
			  ON CONFLICT (namespace) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

var _ storage.Backend = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrations.Up(db, "sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	var payload string

	err := s.db.QueryRowContext(ctx, selectPayload, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	return []byte(payload), nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertPayload, key, string(value)); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
