// Package store persists services, check results and the supporting
// administrative records through gorm.
package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the gorm-backed storage collaborator.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health probes.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AutoMigrate creates the schema from the models. Production uses the SQL
// migrations; this is for tests and throwaway databases.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Service{},
		&models.CheckResult{},
		&models.Setting{},
		&models.Webhook{},
		&models.APIKey{},
		&models.AuditLog{},
		&models.Invite{},
		&models.Event{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
