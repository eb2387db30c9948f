/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package storage defines the local persistence channel.
//
// Every backend holds opaque values under string keys. The application only
// ever uses one key, the namespace it was configured with.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Backend reads and writes a single serialized value per key.
type Backend interface {
	// Read returns model.ErrNotFound when nothing is stored under key.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces any previous value stored under key.
	Write(ctx context.Context, key string, value []byte) error
	Close() error
}

// Kind names a backend implementation.
type Kind string

const (
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
	KindMinio    Kind = "minio"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindFile, KindSQLite, KindPostgres, KindRedis, KindMinio}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}

	names := make([]string, len(Kinds))
	for i, known := range Kinds {
		names[i] = string(known)
	}

	return "", fmt.Errorf("invalid storage backend %q (must be one of: %s)", s, strings.Join(names, ", "))
}
