// Package backend builds the configured index and catalog stores and the
// resources behind them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/catalog"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/index"
	pkgbadger "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/badger"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/sqlite"
)

// connectRetry covers stores that come up a little after the service.
var connectRetry = resilience.RetryConfig{
	MaxAttempts:  5,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// Stores holds the opened stores. Checks has one readiness probe per
// external dependency.
type Stores struct {
	Index   ads.IndexStore
	Catalog ads.CatalogStore
	Checks  map[string]health.Check

	closers []func() error
	logger  *slog.Logger
}

// Open constructs the index and catalog selected by cfg. On error every
// resource opened so far is released.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{
		Checks: make(map[string]health.Check),
		logger: slog.Default().With("component", "backend"),
	}
	if err := s.openIndex(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openCatalog(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	s.logger.Info("stores opened", "index", cfg.Index.Backend, "catalog", cfg.Catalog.Backend)
	return s, nil
}

func (s *Stores) openIndex(ctx context.Context, cfg *config.Config) error {
	switch cfg.Index.Backend {
	case config.BackendRedis:
		client, err := resilience.RetryValue(ctx, "redis connect", connectRetry, func() (*pkgredis.Client, error) {
			return pkgredis.NewClient(ctx, cfg.Redis)
		})
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.Checks["redis"] = health.PingCheck(client.Ping)
		s.Index = index.NewRedis(client, cfg.Index.KeyPrefix)
	case config.BackendBadger:
		db, err := pkgbadger.Open(cfg.Badger)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db.Close)
		idx, err := index.NewBadger(db.DB(), cfg.Index.KeyPrefix)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, idx.Close)
		s.Index = idx
	case config.BackendMemory:
		s.Index = index.NewMemory()
	default:
		return fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	return nil
}

func (s *Stores) openCatalog(ctx context.Context, cfg *config.Config) error {
	switch cfg.Catalog.Backend {
	case config.BackendPostgres:
		if cfg.Catalog.RunMigrations {
			err := resilience.Retry(ctx, "postgres migrate", connectRetry, func() error {
				err := postgres.Migrate(cfg.Postgres.URL())
				if errors.Is(err, postgres.ErrDirty) {
					return resilience.Permanent(err)
				}
				return err
			})
			if err != nil {
				return fmt.Errorf("migrating catalog schema: %w", err)
			}
		}
		client, err := resilience.RetryValue(ctx, "postgres connect", connectRetry, func() (*postgres.Client, error) {
			return postgres.New(ctx, cfg.Postgres)
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.Checks["postgres"] = health.PingCheck(client.Ping)
		s.Catalog = catalog.NewSQL(client.DB, catalog.Postgres)
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db.Close)
		s.Checks["sqlite"] = health.PingCheck(db.PingContext)
		store := catalog.NewSQL(db, catalog.SQLite)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		s.Catalog = store
	case config.BackendMemory:
		s.Catalog = catalog.NewMemory()
	default:
		return fmt.Errorf("unknown catalog backend %q", cfg.Catalog.Backend)
	}
	return nil
}

// Close releases every opened resource in reverse order.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
