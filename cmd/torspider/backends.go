package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/torspider/internal/archive"
	"github.com/nao1215/torspider/internal/config"
	"github.com/nao1215/torspider/internal/database"
	"github.com/nao1215/torspider/internal/dedup"
	"github.com/nao1215/torspider/internal/storage"
)

// connectTimeout bounds connecting to a remote store or cache at startup.
const connectTimeout = 15 * time.Second

// closeFunc releases a backend and logs the failure, if any.
type closeFunc func(logger *slog.Logger)

// openStore opens the configured document store. When the store is SQLite
// the CrawlDB is returned as well so the cache can share the file.
func openStore(ctx context.Context, cfg *config.Config) (archive.Store, closeFunc, *database.CrawlDB, error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreMongoDB:
		s, err := storage.OpenMongo(connCtx, cfg.StoreURI, cfg.StoreDatabase, cfg.StoreCollection)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
		}
		return s, func(logger *slog.Logger) {
			closeCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				logger.Error("failed to close store", "driver", cfg.StoreDriver, "error", err)
			}
		}, nil, nil

	case config.StorePostgres:
		s, err := storage.OpenPostgres(connCtx, cfg.StoreURI, cfg.StoreCollection)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
		}
		return s, func(logger *slog.Logger) {
			if err := s.Close(); err != nil {
				logger.Error("failed to close store", "driver", cfg.StoreDriver, "error", err)
			}
		}, nil, nil

	default:
		db, err := database.Open(cfg.DataDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, func(logger *slog.Logger) {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "path", db.Path(), "error", err)
			}
		}, db, nil
	}
}

// openCache opens the configured dedup cache and checks it answers.
// local is the store's CrawlDB, if any; the sqlite cache reuses it.
func openCache(ctx context.Context, cfg *config.Config, local *database.CrawlDB) (dedup.Cache, error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var (
		cache dedup.Cache
		err   error
	)
	switch cfg.CacheDriver {
	case config.CacheRedis:
		cache, err = dedup.OpenRedis(connCtx, cfg.CacheURI, cfg.CacheNamespace)
	case config.CacheSQLite:
		if local != nil {
			cache = local
		} else {
			cache, err = database.Open(cfg.DataDir, database.DefaultOptions())
		}
	default:
		cache = dedup.NewMemoryCache()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if err := cache.Ping(connCtx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to reach cache: %w", err)
	}
	return cache, nil
}
