package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// History limits
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// InsertCheckResult appends one check row.
func (s *Store) InsertCheckResult(ctx context.Context, check *models.CheckResult) error {
	if err := s.db.WithContext(ctx).Create(check).Error; err != nil {
		return fmt.Errorf("insert check result: %w", err)
	}
	return nil
}

// RecentChecks returns up to limit checks for a service, newest first.
// limit is clamped to [1, MaxHistoryLimit]; zero selects the default.
func (s *Store) RecentChecks(ctx context.Context, serviceID string, limit int) ([]models.CheckResult, error) {
	limit = ClampHistoryLimit(limit)

	var checks []models.CheckResult
	err := s.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("checked_at DESC").
		Limit(limit).
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	return checks, nil
}

// ClampHistoryLimit normalizes a requested history size.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// LatestCheck returns the newest check of a service, or nil when the
// service has never been checked.
func (s *Store) LatestCheck(ctx context.Context, serviceID string) (*models.CheckResult, error) {
	var check models.CheckResult
	err := s.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("checked_at DESC").
		Take(&check).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest check: %w", err)
	}
	return &check, nil
}

// LatestChecks returns the newest check per service id. Services without
// checks map to nil.
func (s *Store) LatestChecks(ctx context.Context, serviceIDs []string) (map[string]*models.CheckResult, error) {
	out := make(map[string]*models.CheckResult, len(serviceIDs))
	for _, id := range serviceIDs {
		check, err := s.LatestCheck(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = check
	}
	return out, nil
}

type statsRow struct {
	Total      int64
	Successful int64
	AvgTime    float64
	MinTime    int64
	MaxTime    int64
}

// Stats aggregates the checks of a service recorded after since.
func (s *Store) Stats(ctx context.Context, serviceID string, since time.Time) (models.CheckStats, error) {
	var row statsRow
	err := s.db.WithContext(ctx).
		Model(&models.CheckResult{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful,
			COALESCE(AVG(response_time), 0) AS avg_time,
			COALESCE(MIN(response_time), 0) AS min_time,
			COALESCE(MAX(response_time), 0) AS max_time`).
		Where("service_id = ? AND checked_at > ?", serviceID, since.UTC()).
		Scan(&row).Error
	if err != nil {
		return models.CheckStats{}, fmt.Errorf("check stats: %w", err)
	}

	stats := models.CheckStats{
		TotalChecks:      row.Total,
		SuccessfulChecks: row.Successful,
		AvgResponseTime:  int64(math.Round(row.AvgTime)),
		MinResponseTime:  row.MinTime,
		MaxResponseTime:  row.MaxTime,
	}
	if row.Total > 0 {
		stats.UptimePercent = math.Round(float64(row.Successful)/float64(row.Total)*100*100) / 100
	}
	return stats, nil
}

// StatsBatch runs Stats for every id.
func (s *Store) StatsBatch(ctx context.Context, serviceIDs []string, since time.Time) (map[string]models.CheckStats, error) {
	out := make(map[string]models.CheckStats, len(serviceIDs))
	for _, id := range serviceIDs {
		stats, err := s.Stats(ctx, id, since)
		if err != nil {
			return nil, err
		}
		out[id] = stats
	}
	return out, nil
}

// DeleteChecksBefore removes checks recorded before cutoff and returns how
// many rows were deleted.
func (s *Store) DeleteChecksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("checked_at < ?", cutoff.UTC()).Delete(&models.CheckResult{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old checks: %w", res.Error)
	}
	return res.RowsAffected, nil
}
