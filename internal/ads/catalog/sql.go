// Package catalog implements the ad id -> Advertisement store on SQL
// databases (PostgreSQL through lib/pq, SQLite through modernc.org/sqlite)
// and in memory.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

// Dialect selects placeholder syntax and schema handling.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// sqliteSchema mirrors the postgres migration. Postgres gets its schema from
// pkg/postgres/migrations instead.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ads (
    ad_id       INTEGER PRIMARY KEY,
    campaign_id INTEGER NOT NULL,
    title       TEXT NOT NULL,
    brand       TEXT NOT NULL DEFAULT '',
    thumbnail   TEXT NOT NULL DEFAULT '',
    detail_url  TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    price       REAL NOT NULL DEFAULT 100.0,
    bid_price   REAL NOT NULL DEFAULT 100.0,
    keywords    TEXT NOT NULL DEFAULT '[]',
    created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS ads_campaign_id_idx ON ads (campaign_id);
`

const (
	insertAd = `INSERT INTO ads
	(ad_id, campaign_id, title, brand, thumbnail, detail_url, category, price, bid_price, keywords)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectAd = `SELECT ad_id, campaign_id, title, brand, thumbnail, detail_url, category, price, bid_price, keywords
	FROM ads WHERE ad_id = ?`
)

// SQL is an ads.CatalogStore over database/sql. Each session pins one
// connection from the pool and returns it on Close.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	insert  string
	get     string
}

var _ ads.CatalogStore = (*SQL)(nil)

func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{
		db:      db,
		dialect: dialect,
		insert:  rebind(dialect, insertAd),
		get:     rebind(dialect, selectAd),
	}
}

// EnsureSchema creates the ads table on SQLite. It is a no-op for Postgres,
// whose schema is owned by the migrations.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	if s.dialect != SQLite {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating sqlite schema: %w", err)
	}
	return nil
}

func (s *SQL) Open(ctx context.Context) (ads.CatalogSession, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, apperrors.Unavailable(s.dialect.String(), err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, apperrors.Unavailable(s.dialect.String(), err)
	}
	return &sqlSession{conn: conn, store: s}, nil
}

type sqlSession struct {
	conn  *sql.Conn
	store *SQL
}

func (s *sqlSession) Insert(ctx context.Context, ad *ads.Advertisement) error {
	keywords, err := json.Marshal(nonNil(ad.Keywords))
	if err != nil {
		return fmt.Errorf("encoding keywords for ad %d: %w", ad.AdID, err)
	}
	_, err = s.conn.ExecContext(ctx, s.store.insert,
		ad.AdID, ad.CampaignID, ad.Title, ad.Brand, ad.Thumbnail,
		ad.DetailURL, ad.Category, ad.Price, ad.BidPrice, string(keywords),
	)
	if err != nil {
		return fmt.Errorf("inserting ad %d: %w", ad.AdID, err)
	}
	return nil
}

func (s *sqlSession) GetByID(ctx context.Context, adID int64) (*ads.Advertisement, error) {
	var (
		ad       ads.Advertisement
		keywords string
	)
	err := s.conn.QueryRowContext(ctx, s.store.get, adID).Scan(
		&ad.AdID, &ad.CampaignID, &ad.Title, &ad.Brand, &ad.Thumbnail,
		&ad.DetailURL, &ad.Category, &ad.Price, &ad.BidPrice, &keywords,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ad %d: %w", adID, apperrors.ErrAdNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading ad %d: %w", adID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &ad.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords of ad %d: %w", adID, err)
	}
	ad.Keywords = nonNil(ad.Keywords)
	return &ad, nil
}

func (s *sqlSession) Close() error {
	return s.conn.Close()
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nonNil(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}
