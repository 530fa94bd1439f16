package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/fuomag9/kabomba-status/internal/models"
)

// Errors returned by the scheduler control surface
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceDisabled = errors.New("service is disabled")
)

// TimeoutMessage is the error text recorded when a probe times out or is aborted.
const TimeoutMessage = "Request timed out"

// Result is the outcome of a single probe attempt.
type Result struct {
	StatusCode     *int
	Success        bool
	ErrorMessage   string
	ResponseTimeMs int64
	// TimedOut marks a timeout or abort, the only failure that is retried.
	TimedOut bool
}

// Prober performs one health probe.
type Prober interface {
	Probe(ctx context.Context, svc *models.Service, timeout time.Duration) Result
}

// Store is the storage the scheduler depends on.
type Store interface {
	ListEnabledServices(ctx context.Context) ([]models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
	InsertCheckResult(ctx context.Context, check *models.CheckResult) error
}

// Settings supplies the check policy, re-read on every cycle.
type Settings interface {
	RetryCount(ctx context.Context) int
	CheckTimeout(ctx context.Context) time.Duration
}

// Notifier delivers down/up episodes. Errors are logged and dropped.
type Notifier interface {
	NotifyDown(ctx context.Context, svc *models.Service, check *models.CheckResult) error
	NotifyUp(ctx context.Context, svc *models.Service, check *models.CheckResult) error
}

// Broadcaster fans a new check result out to live clients.
type Broadcaster interface {
	Broadcast(serviceID string, check *models.CheckResult)
}
