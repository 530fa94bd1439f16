package store

import (
	"context"
	"fmt"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// ListWebhooks returns all webhooks, newest first.
func (s *Store) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return hooks, nil
}

// WebhooksForGroup returns the enabled webhooks that target group.
func (s *Store) WebhooksForGroup(ctx context.Context, group string) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("list webhooks for group: %w", err)
	}
	out := hooks[:0]
	for _, h := range hooks {
		if h.Targets(group) {
			out = append(out, h)
		}
	}
	return out, nil
}

// CreateWebhook inserts a webhook.
func (s *Store) CreateWebhook(ctx context.Context, hook *models.Webhook) error {
	if err := s.db.WithContext(ctx).Create(hook).Error; err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes a webhook by id.
func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Webhook{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete webhook: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
