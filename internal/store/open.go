package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/db"
)

// Open builds the backend named by cfg.Backend. The caller owns the returned
// store and must Close it.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", "memory":
		if cfg.DataDir == "" {
			return NewMemory(nil)
		}
		p, err := NewPersistence(cfg.DataDir, logger.Named("persistence"))
		if err != nil {
			return nil, err
		}
		return NewMemory(p)
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("store: DATABASE_URL is required for the postgres backend")
		}
		return OpenPostgres(ctx, PostgresConfig{DSN: cfg.DatabaseURL})
	case "oxidb":
		pool, err := db.NewPool(db.Options{
			Host:   cfg.OxiDBHost,
			Port:   cfg.OxiDBPort,
			Size:   cfg.PoolSize,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		s, err := NewOxiDB(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
}

// Volatile reports whether cfg selects the in-process store without a data
// directory, whose contents vanish when the process exits.
func Volatile(cfg config.StoreConfig) bool {
	return (cfg.Backend == "" || cfg.Backend == "memory") && cfg.DataDir == ""
}
