/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package file stores state as JSON files in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/storage"
)

var _ storage.Backend = (*Store)(nil)

type Store struct {
	fs  afero.Fs
	dir string
}

// New returns a Store rooted at dir on the OS filesystem.
func New(dir string) (*Store, error) {
	return NewWithFs(afero.NewOsFs(), dir)
}

// NewWithFs allows injecting a filesystem (used in tests).
func NewWithFs(fsys afero.Fs, dir string) (*Store, error) {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat state directory: %w", err)
	}

	if !exists {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	return &Store{
		fs:  fsys,
		dir: dir,
	}, nil
}

func (s *Store) path(key string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(key)

	return filepath.Join(s.dir, name+".json")
}

// Read returns the file contents for key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	return data, nil
}

// Write replaces the file for key, going through a temporary file so a crash
// never leaves a truncated state behind.
func (s *Store) Write(_ context.Context, key string, value []byte) error {
	target := s.path(key)
	tmp := target + ".tmp"

	if err := afero.WriteFile(s.fs, tmp, value, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}
