// Package driver opens the Store selected by configuration.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/grouporder/internal/config"
	"github.com/mmynk/grouporder/internal/storage"
	"github.com/mmynk/grouporder/internal/storage/postgres"
	"github.com/mmynk/grouporder/internal/storage/redis"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
)

// Open connects to the configured store. The caller owns the returned Store
// and must Close it.
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Store.Driver, "database", cfg.SQLite.Path)
		return store, nil

	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Store.Driver, "max_conns", cfg.Postgres.MaxConns)
		return store, nil

	case config.DriverRedis:
		store, err := redis.New(ctx, redis.Options{
			URL:          cfg.Redis.URL,
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.Store.Driver, "key_prefix", cfg.Redis.KeyPrefix)
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
