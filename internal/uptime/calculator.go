package uptime

import (
	"context"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// StatsSource aggregates checks of a service recorded after since
type StatsSource interface {
	Stats(ctx context.Context, serviceID string, since time.Time) (models.CheckStats, error)
}

// Window is a named lookback period
type Window struct {
	Name     string
	Duration time.Duration
}

// Windows reported by Summary, shortest first
var Windows = []Window{
	{Name: "24h", Duration: 24 * time.Hour},
	{Name: "7d", Duration: 7 * 24 * time.Hour},
	{Name: "30d", Duration: 30 * 24 * time.Hour},
	{Name: "90d", Duration: 90 * 24 * time.Hour},
}

// Calculator calculates uptime statistics for services
type Calculator struct {
	stats StatsSource
	now   func() time.Time
}

// NewCalculator creates a new uptime calculator
func NewCalculator(stats StatsSource) *Calculator {
	return &Calculator{stats: stats, now: time.Now}
}

// WindowStats is the check summary of one service over one window
type WindowStats struct {
	Window    string    `json:"window"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	models.CheckStats
}

// Summary is the uptime of a service across all standard windows
type Summary struct {
	ServiceID string        `json:"serviceId"`
	Windows   []WindowStats `json:"windows"`
}

// ForPeriod calculates uptime for the period ending now
func (c *Calculator) ForPeriod(ctx context.Context, serviceID string, window Window) (*WindowStats, error) {
	end := c.now().UTC()
	start := end.Add(-window.Duration)

	stats, err := c.stats.Stats(ctx, serviceID, start)
	if err != nil {
		return nil, err
	}
	return &WindowStats{Window: window.Name, StartTime: start, EndTime: end, CheckStats: stats}, nil
}

// Summary calculates uptime for every standard window
func (c *Calculator) Summary(ctx context.Context, serviceID string) (*Summary, error) {
	out := &Summary{ServiceID: serviceID, Windows: make([]WindowStats, 0, len(Windows))}
	for _, w := range Windows {
		ws, err := c.ForPeriod(ctx, serviceID, w)
		if err != nil {
			return nil, err
		}
		out.Windows = append(out.Windows, *ws)
	}
	return out, nil
}

// Lookup returns the standard window with name
func Lookup(name string) (Window, bool) {
	for _, w := range Windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}
