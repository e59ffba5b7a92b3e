package store

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/crypto"
	"github.com/testforge/smartfill/internal/repository/postgres"
	"github.com/testforge/smartfill/internal/repository/redis"
)

// Backend is a KV that also owns a connection.
type Backend interface {
	KV
	io.Closer
	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
}

type memoryBackend struct {
	*Memory
}

func (memoryBackend) Close() error                 { return nil }
func (memoryBackend) Health(context.Context) error { return nil }

// postgresBackend promotes Get, Set, Delete and Update from the repository.
type postgresBackend struct {
	*postgres.KVRepository
	db *postgres.DB
}

func (b postgresBackend) Close() error                     { return b.db.Close() }
func (b postgresBackend) Health(ctx context.Context) error { return b.db.Health(ctx) }

// Open connects the backend selected by cfg.Store.Backend. The Redis cache
// is returned as well when that backend is used so callers can share it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, *redis.Cache, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory, "":
		logger.Info("using in-memory store")
		return memoryBackend{NewMemory()}, nil, nil

	case config.StoreRedis:
		cache, err := redis.New(cfg.Redis, cfg.Store.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis store", zap.String("addr", cfg.Redis.Addr()))
		return cache, cache, nil

	case config.StorePostgres:
		db, err := postgres.New(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewKVRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("using postgres store", zap.String("host", cfg.Database.Host))
		return postgresBackend{KVRepository: repo, db: db}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Options returns the store options selected by cfg.
func Options(cfg *config.Config) ([]Option, error) {
	key, err := crypto.ParseKey(cfg.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store encryption key: %w", err)
	}
	if key == nil {
		return nil, nil
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("store encryption key: %w", err)
	}
	return []Option{WithSealer(sealer)}, nil
}
