package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	// Group matches events of that group and events with no group.
	Group  string
	Status string
	Limit  int
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Model(&models.Event{})
	if f.Group != "" {
		q = q.Where("group_name = ? OR group_name IS NULL", f.Group)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	var events []models.Event
	if err := q.Order("started_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListActiveEvents returns ongoing and scheduled events, optionally scoped
// like ListEvents.
func (s *Store) ListActiveEvents(ctx context.Context, group string) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Where("status IN ?", []string{models.EventOngoing, models.EventScheduled})
	if group != "" {
		q = q.Where("group_name = ? OR group_name IS NULL", group)
	}
	var events []models.Event
	if err := q.Order("started_at DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	return events, nil
}

// GetEvent loads one event or returns ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

// CreateEvent inserts an event.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// UpdateEvent saves every mutable column of event.
func (s *Store) UpdateEvent(ctx context.Context, event *models.Event) error {
	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", event.ID).
		Select("*").Omit("id", "created_at", "created_by").Updates(event)
	if res.Error != nil {
		return fmt.Errorf("update event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveEvent marks an event resolved at the given time.
func (s *Store) ResolveEvent(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).
		Updates(map[string]any{"status": models.EventResolved, "resolved_at": at.UTC(), "updated_at": at.UTC()})
	if res.Error != nil {
		return fmt.Errorf("resolve event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Event{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
