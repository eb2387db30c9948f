/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"

	"github.com/google/logger"

	"github.com/Seednode/secretsanta/internal/hint"
	"github.com/Seednode/secretsanta/internal/state"
	"github.com/Seednode/secretsanta/internal/storage"
	"github.com/Seednode/secretsanta/internal/storage/file"
	"github.com/Seednode/secretsanta/internal/storage/minio"
	"github.com/Seednode/secretsanta/internal/storage/postgres"
	"github.com/Seednode/secretsanta/internal/storage/redis"
	"github.com/Seednode/secretsanta/internal/storage/sqlite"
)

func openBackend(ctx context.Context, cfg *Config) (storage.Backend, error) {
	kind, err := storage.ParseKind(cfg.storage)
	if err != nil {
		return nil, err
	}

	switch kind {
	case storage.KindFile:
		return file.New(cfg.stateDir)
	case storage.KindSQLite:
		return sqlite.Open(cfg.sqlitePath)
	case storage.KindPostgres:
		return postgres.Open(ctx, cfg.postgresDSN)
	case storage.KindRedis:
		return redis.Open(ctx, cfg.redisAddr, cfg.redisPassword, cfg.redisDB)
	case storage.KindMinio:
		return minio.Open(ctx, minio.Options{
			Endpoint:  cfg.minioEndpoint,
			AccessKey: cfg.minioAccess,
			SecretKey: cfg.minioSecret,
			Bucket:    cfg.minioBucket,
			UseSSL:    cfg.minioUseSSL,
		})
	}

	return nil, fmt.Errorf("unsupported storage backend %q", kind)
}

// openStore connects the configured backend and loads the stored state.
// The caller closes the returned backend.
func openStore(ctx context.Context, cfg *Config) (*state.Store, storage.Backend, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.storage, err)
	}

	store := state.New(backend, cfg.namespace, cfg.participants)

	st, src, err := store.Load(ctx, "")
	if err != nil {
		logger.Errorf("Failed to load state: %v", err)
	}

	logf(cfg, "STATE: Loaded %d participants from %s storage (%s)", len(st.Users), cfg.storage, src)

	return store, backend, nil
}

func newHintClient(ctx context.Context, cfg *Config) *hint.Client {
	if cfg.geminiAPIKey == "" {
		logf(cfg, "HINTS: No gemini api key configured, hints are disabled")

		return hint.New(hint.Disabled(), cfg.hintLanguage)
	}

	gen, err := hint.NewGemini(ctx, cfg.geminiAPIKey, cfg.geminiModel)
	if err != nil {
		logger.Errorf("Failed to set up hints: %v", err)

		return hint.New(hint.Disabled(), cfg.hintLanguage)
	}

	return hint.New(gen, cfg.hintLanguage)
}
