package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var MigrationFiles embed.FS

// LatestVersion returns the highest schema version shipped in MigrationFiles.
func LatestVersion() (uint, error) {
	src, err := iofs.New(MigrationFiles, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to open migration source: %w", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no migrations embedded: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}

// RunMigrations brings the segment tables in db up to LatestVersion. With
// autoMigrate false it only reports how far behind the schema is; the
// segment source then fails its own schema check if tables are missing.
func RunMigrations(db *sql.DB, autoMigrate bool) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	if dirty {
		// Every migration uses IF [NOT] EXISTS, so re-running from the recorded version is safe.
		slog.Warn("[Migrations] Schema left dirty by an interrupted migration, forcing version", "version", current)
		if err := m.Force(int(current)); err != nil {
			return fmt.Errorf("failed to recover dirty migration state at version %d: %w", current, err)
		}
	}

	latest, err := LatestVersion()
	if err != nil {
		return err
	}

	if !autoMigrate {
		if current < latest {
			slog.Warn("[Migrations] Segment schema is behind and auto_migrate is off",
				"current_version", current,
				"latest_version", latest,
			)
		}
		return nil
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if current != latest {
		slog.Info("[Migrations] Segment schema migrated", "from_version", current, "to_version", latest)
	} else {
		slog.Debug("[Migrations] Segment schema is up to date", "version", current)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(MigrationFiles, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
