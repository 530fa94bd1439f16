package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// ListServices returns every service ordered by group and name.
func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := s.db.WithContext(ctx).Order("group_name ASC, name ASC").Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// ListPublicServices returns services visible on the public status page.
func (s *Store) ListPublicServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := s.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("group_name ASC, name ASC").
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("list public services: %w", err)
	}
	return services, nil
}

// ListEnabledServices returns every service that should be polled.
func (s *Store) ListEnabledServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("list enabled services: %w", err)
	}
	return services, nil
}

// GetService loads one service or returns ErrNotFound.
func (s *Store) GetService(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	if err := s.db.WithContext(ctx).First(&svc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

// CreateService inserts svc, creating its group row when needed.
func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGroup(tx, svc.GroupName); err != nil {
			return err
		}
		if err := tx.Create(svc).Error; err != nil {
			return fmt.Errorf("create service: %w", err)
		}
		return nil
	})
}

// UpdateService saves every column of svc.
func (s *Store) UpdateService(ctx context.Context, svc *models.Service) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGroup(tx, svc.GroupName); err != nil {
			return err
		}
		res := tx.Model(&models.Service{}).Where("id = ?", svc.ID).Select("*").Omit("id", "created_at", "created_by").Updates(svc)
		if res.Error != nil {
			return fmt.Errorf("update service: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteService removes a service and its check history.
func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service_id = ?", id).Delete(&models.CheckResult{}).Error; err != nil {
			return fmt.Errorf("delete service checks: %w", err)
		}
		res := tx.Delete(&models.Service{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete service: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func ensureGroup(tx *gorm.DB, name *string) error {
	if name == nil || *name == "" {
		return nil
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Group{Name: *name}).Error
	if err != nil {
		return fmt.Errorf("ensure group %q: %w", *name, err)
	}
	return nil
}
