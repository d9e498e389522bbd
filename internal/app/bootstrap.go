package app

import (
	"context"
	"fmt"
	"log/slog"

	"todo/backend/internal/config"
	"todo/backend/internal/idgen"
	"todo/backend/internal/store"
)

// OpenRepository binds the backend named by cfg.Storage. SQL backends are
// migrated before the repository is returned; any failure here is meant to
// stop the process.
func OpenRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Repository, error) {
	ids, err := idgen.New(cfg.IDFormat)
	if err != nil {
		return nil, err
	}
	opts := []store.Option{store.WithIDGenerator(ids)}

	switch cfg.Storage {
	case config.StorageMemory:
		logger.Info("using in-memory storage")
		return store.NewMemoryStore(opts...), nil

	case config.StoragePostgres, config.StorageSQLite:
		db, err := store.Open(ctx, cfg.Storage, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		logger.Info("using sql storage", "dialect", cfg.Storage, "migrations_dir", cfg.MigrationsDir)
		return store.NewSQLStore(db, opts...), nil

	case config.StorageRedis:
		repo, err := store.NewRedisStore(ctx, cfg.RedisURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("using redis storage")
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}
