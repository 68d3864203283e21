// Package redis owns the go-redis pool behind the keyword index. Index
// sessions each pin one pooled connection for their lifetime.
package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
)

const pingTimeout = 5 * time.Second

type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient dials cfg.Addr and pings it. Failures come back as
// ErrStoreUnavailable so startup can retry them.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, apperrors.Unavailable("redis", err)
	}

	log := logger.WithComponent("redis")
	log.Info("connected", "addr", cfg.Addr, "db", cfg.DB, "pool_size", rdb.Options().PoolSize)
	return &Client{rdb: rdb, logger: log}, nil
}

// Conn pins a pooled connection and checks it with a PING. The caller
// closes it to hand it back.
func (c *Client) Conn(ctx context.Context) (*redis.Conn, error) {
	conn := c.rdb.Conn()
	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		c.logger.Warn("connection check failed", "error", err)
		return nil, apperrors.Unavailable("redis", err)
	}
	return conn, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
