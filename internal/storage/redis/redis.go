/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package redis stores state as a Redis string value.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/storage"
)

// redisAPI is the subset of *redis.Client used by Store.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

var _ storage.Backend = (*Store)(nil)

type Store struct {
	api redisAPI
}

// Open connects to the Redis server at addr.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithAPI(client), nil
}

// NewWithAPI allows injecting a mockable API (used in tests).
func NewWithAPI(api redisAPI) *Store {
	return &Store{api: api}
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.api.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	return data, nil
}

// Write stores value without expiry.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if err := s.api.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.api.Close()
}
