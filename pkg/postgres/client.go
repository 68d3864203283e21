// Package postgres opens the catalog's PostgreSQL pool and migrates its
// schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
)

const pingTimeout = 5 * time.Second

// Client owns the pool. Catalog sessions take single connections from DB.
type Client struct {
	DB *sql.DB
}

// New builds the pool through a lib/pq connector and pings it once. An
// unreachable server yields an ErrStoreUnavailable error, which callers may
// retry.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperrors.Unavailable("postgres", err)
	}
	logger.WithComponent("postgres").Info("connected",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return &Client{DB: db}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}
