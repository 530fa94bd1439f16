package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"

	"github.com/fuomag9/kabomba-status/internal/config"
	"github.com/fuomag9/kabomba-status/internal/logger"
)

// RunMigrations applies every pending up migration from cfg.MigrationsPath.
func RunMigrations(db *gorm.DB, cfg config.DatabaseConfig) error {
	m, err := newMigrator(db, cfg)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Log().WithField("version", version).WithField("dirty", dirty).Info("database migrations applied")

	return nil
}

// RollbackMigrations reverts the given number of migration steps.
func RollbackMigrations(db *gorm.DB, cfg config.DatabaseConfig, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive")
	}
	m, err := newMigrator(db, cfg)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

func newMigrator(db *gorm.DB, cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL(cfg.MigrationsPath), cfg.Type, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func sourceURL(path string) string {
	if path == "" {
		path = "./migrations"
	}
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
