package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// ListGroups returns all groups ordered by name.
func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// GetGroup loads a group by name or returns ErrNotFound.
func (s *Store) GetGroup(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

// UpsertGroup creates the group or updates its email flag.
func (s *Store) UpsertGroup(ctx context.Context, group *models.Group) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_notifications"}),
	}).Create(group).Error
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}
