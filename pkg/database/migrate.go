package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
)

// migrateLogger adapts our logger to migrate.Logger.
type migrateLogger struct {
	log     *logger.Logger
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.log.Info().Msgf("migration: "+strings.TrimSuffix(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool { return l.verbose }

func newMigrate(dir, dbURL string, log *logger.Logger, verbose bool) (*migrate.Migrate, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations dir: %w", err)
	}
	m, err := migrate.New("file://"+abs, dbURL)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	m.Log = &migrateLogger{log: log, verbose: verbose}
	return m, nil
}

// MigrateUp applies every pending migration in dir. Already being at the
// latest version is not an error.
func MigrateUp(dir, dbURL string, log *logger.Logger, verbose bool) error {
	m, err := newMigrate(dir, dbURL, log, verbose)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info().Str("dir", dir).Msg("running database migrations")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("database migration: no change needed")
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of steps.
func MigrateDown(dir, dbURL string, steps int, log *logger.Logger) error {
	m, err := newMigrate(dir, dbURL, log, false)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrationVersion reports the current schema version.
func MigrationVersion(dir, dbURL string, log *logger.Logger) (uint, bool, error) {
	m, err := newMigrate(dir, dbURL, log, false)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
