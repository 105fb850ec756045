package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"emojifed/internal/federation/registry"
	"emojifed/internal/federation/registry/store"
	"emojifed/internal/platform/config"
	"emojifed/internal/platform/postgres"
	"emojifed/internal/platform/redis"
)

// backend bundles the registry store with the connection that backs it.
type backend struct {
	store  registry.Store
	health func(context.Context) error
	close  func()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	noop := func() {}
	healthy := func(context.Context) error { return nil }

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn("registry uses in-memory storage; entries are lost on restart")
		return &backend{store: store.NewMemory(), health: healthy, close: noop}, nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("storage backend %q requires redis.url", config.BackendRedis)
		}
		log.Info("registry uses redis storage", "key", cfg.Redis.Key)
		return &backend{
			store:  store.NewRedis(client.Client, store.WithRedisKey(cfg.Redis.Key)),
			health: client.Health,
			close: func() {
				if err := client.Close(); err != nil {
					log.Warn("closing redis failed", "error", err)
				}
			},
		}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info("registry uses postgres storage")
		return &backend{store: pg, health: db.PingContext, close: closeDB(db, log)}, nil

	default:
		file := store.NewFile(cfg.Storage.Path)
		log.Info("registry uses file storage", "path", file.Path())
		return &backend{store: file, health: healthy, close: noop}, nil
	}
}

func closeDB(db *sql.DB, log *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("closing postgres failed", "error", err)
		}
	}
}
