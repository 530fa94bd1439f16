package store

import (
	"context"
	"fmt"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// RecordAudit appends an audit log entry.
func (s *Store) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit entries.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	limit = ClampHistoryLimit(limit)
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}
