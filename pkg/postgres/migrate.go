package postgres

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/postgres/migrations"
)

// ErrDirty is returned when a previous migration failed half-way.
var ErrDirty = errors.New("database is in dirty state")

// Migrate brings the schema at url (postgres://...) to migrations.Version.
func Migrate(url string) error {
	driver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	defer driver.Close()

	mg, err := migrate.NewWithSourceInstance("iofs", driver, url)
	if err != nil {
		return fmt.Errorf("initialising migrator: %w", err)
	}
	defer mg.Close()

	current, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, current)
	}

	if err := mg.Migrate(migrations.Version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating to version %d: %w", migrations.Version, err)
	}
	slog.Info("schema migrated", "from", current, "to", migrations.Version)
	return nil
}
