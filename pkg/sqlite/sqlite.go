// Package sqlite opens an embedded SQLite database (modernc.org/sqlite, no
// cgo) for single-node deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
)

// Open opens the database at cfg.Path, creating its directory, and enables
// WAL mode with a busy timeout so readers and the ingest writer can overlap.
func Open(ctx context.Context, cfg config.SQLiteConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory %s: %w", dir, err)
		}
	}
	dsn := "file:" + cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	return db, nil
}
