package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/redis"
)

// Redis keeps each keyword's ad ids in a Redis list at prefix+keyword.
// RPUSH preserves insertion order and keeps duplicates.
type Redis struct {
	client *pkgredis.Client
	prefix string
}

var _ ads.IndexStore = (*Redis)(nil)

func NewRedis(client *pkgredis.Client, keyPrefix string) *Redis {
	return &Redis{client: client, prefix: keyPrefix}
}

func (r *Redis) Open(ctx context.Context) (ads.IndexSession, error) {
	conn, err := r.client.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &redisSession{conn: conn, prefix: r.prefix}, nil
}

type redisSession struct {
	conn   *redis.Conn
	prefix string
}

func (s *redisSession) Put(ctx context.Context, keyword string, adID int64) error {
	if err := s.conn.RPush(ctx, s.prefix+keyword, strconv.FormatInt(adID, 10)).Err(); err != nil {
		return fmt.Errorf("indexing %q -> %d: %w", keyword, adID, err)
	}
	return nil
}

func (s *redisSession) Get(ctx context.Context, keyword string) ([]string, error) {
	ids, err := s.conn.LRange(ctx, s.prefix+keyword, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading keyword %q: %w", keyword, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *redisSession) Close() error {
	return s.conn.Close()
}
