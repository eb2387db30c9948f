/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package migrations applies the SQL schema shared by the sqlite and postgres
// backends.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

// goose keeps its dialect and filesystem in package globals.
var mu sync.Mutex

// Up migrates db to the latest schema. dialect is a goose dialect name such as
// "sqlite3" or "postgres".
func Up(db *sql.DB, dialect string) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
