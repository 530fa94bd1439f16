package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// ImportStats counts what an import created
type ImportStats struct {
	GroupsCreated   int `json:"groupsCreated"`
	GroupsRenamed   int `json:"groupsRenamed"`
	ServicesCreated int `json:"servicesCreated"`
}

// ImportOptions controls who owns imported rows and whether groups may be created
type ImportOptions struct {
	Owner string
	// CanCreateGroups allows new group rows. Without it, services pointing at
	// an unknown group are imported ungrouped.
	CanCreateGroups bool
}

// ListServicesInGroup returns the services of one group by creation time.
func (s *Store) ListServicesInGroup(ctx context.Context, group string) ([]models.Service, error) {
	var services []models.Service
	err := s.db.WithContext(ctx).Where("group_name = ?", group).Order("created_at ASC").Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("list group services: %w", err)
	}
	return services, nil
}

// Import inserts the groups and services of data in one transaction and
// returns the created services. A group whose name is taken is created as
// "name-(N)" and the services that referenced it follow the rename.
func (s *Store) Import(ctx context.Context, data models.ExportData, opts ImportOptions) ([]models.Service, ImportStats, error) {
	var (
		stats   ImportStats
		created []models.Service
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		renamed := make(map[string]string)
		for _, g := range data.Groups {
			name, err := uniqueGroupName(tx, g.Name)
			if err != nil {
				return err
			}
			if name != g.Name {
				renamed[g.Name] = name
				stats.GroupsRenamed++
			}
			if err := tx.Create(&models.Group{Name: name, EmailNotifications: g.EmailNotifications}).Error; err != nil {
				return fmt.Errorf("create group %q: %w", name, err)
			}
			stats.GroupsCreated++
		}

		for i := range data.Services {
			svc := data.Services[i].Service(opts.Owner)
			if svc.GroupName != nil {
				if to, ok := renamed[*svc.GroupName]; ok {
					svc.GroupName = &to
				}
				exists, err := groupExists(tx, *svc.GroupName)
				if err != nil {
					return err
				}
				switch {
				case exists:
				case opts.CanCreateGroups:
					if err := tx.Create(&models.Group{Name: *svc.GroupName}).Error; err != nil {
						return fmt.Errorf("create group %q: %w", *svc.GroupName, err)
					}
					stats.GroupsCreated++
				default:
					svc.GroupName = nil
				}
			}
			if err := tx.Create(svc).Error; err != nil {
				return fmt.Errorf("import service %q: %w", svc.Name, err)
			}
			created = append(created, *svc)
			stats.ServicesCreated++
		}
		return nil
	})
	if err != nil {
		return nil, ImportStats{}, err
	}
	return created, stats, nil
}

func groupExists(tx *gorm.DB, name string) (bool, error) {
	var g models.Group
	err := tx.Select("name").First(&g, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up group %q: %w", name, err)
	}
	return true, nil
}

func uniqueGroupName(tx *gorm.DB, base string) (string, error) {
	name := base
	for n := 1; ; n++ {
		exists, err := groupExists(tx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s-(%d)", base, n)
	}
}
