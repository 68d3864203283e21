// Package badger opens embedded BadgerDB instances with logging routed
// through slog.
package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
)

// Backend wraps a BadgerDB instance.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogAdapter adapts slog.Logger to badger.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

// Badger is chatty at info level; its info lines go to debug.
func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the database described by cfg. An empty Dir implies in-memory
// mode. The directory is created if it does not exist.
func Open(cfg config.BadgerConfig) (*Backend, error) {
	logger := slog.Default().With("component", "badger")

	var opts badger.Options
	if cfg.InMemory || cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating badger directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.Logger = &slogAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	logger.Info("badger opened", "dir", cfg.Dir, "in_memory", opts.InMemory)
	return &Backend{db: db, logger: logger}, nil
}

// DB exposes the underlying database.
func (b *Backend) DB() *badger.DB {
	return b.db
}

// Close closes the database.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing badger: %w", err)
	}
	return nil
}
