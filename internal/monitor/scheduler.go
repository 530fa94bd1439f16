package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/metrics"
	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

// Options tunes the scheduler.
type Options struct {
	// MinInterval is the floor applied to every service's check interval.
	MinInterval time.Duration
	// RetryDelay is the pause before the single retry of a timed out probe.
	RetryDelay time.Duration
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{MinInterval: 10 * time.Second, RetryDelay: time.Second}
}

// Scheduler owns one recurring timer per enabled service and runs the
// check cycle on every firing.
type Scheduler struct {
	store       Store
	prober      Prober
	settings    Settings
	notifier    Notifier
	broadcaster Broadcaster
	opts        Options

	// ctx bounds timer-driven cycles; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	cycles sync.WaitGroup

	jobs map[string]*job
	mu   sync.RWMutex

	// stateMu guards the runtime state of every job
	stateMu sync.Mutex

	// intervalOf is replaced in tests to run with sub-second timers.
	intervalOf func(svc *models.Service) time.Duration
}

// job represents a scheduled service. Its runtime state lives and dies
// with it, so cycles of a stopped or replaced job cannot touch the state
// of its successor.
type job struct {
	service *models.Service
	ticker  *time.Ticker
	stop    chan struct{}
	state   runtimeState
}

// NewScheduler wires the scheduler to its collaborators. notifier and
// broadcaster may be nil.
func NewScheduler(st Store, prober Prober, settings Settings, notifier Notifier, broadcaster Broadcaster, opts Options) *Scheduler {
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultOptions().MinInterval
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:         ctx,
		cancel:      cancel,
		store:       st,
		prober:      prober,
		settings:    settings,
		notifier:    notifier,
		broadcaster: broadcaster,
		opts:        opts,
		jobs:        make(map[string]*job),
	}
	s.intervalOf = s.interval
	return s
}

func (s *Scheduler) interval(svc *models.Service) time.Duration {
	d := time.Duration(svc.CheckInterval) * time.Second
	if d < s.opts.MinInterval {
		return s.opts.MinInterval
	}
	return d
}

// InitializeAll schedules every enabled service. It is called once at startup.
func (s *Scheduler) InitializeAll(ctx context.Context) error {
	services, err := s.store.ListEnabledServices(ctx)
	if err != nil {
		return fmt.Errorf("load enabled services: %w", err)
	}

	logger.Log().WithField("count", len(services)).Info("starting service checkers")

	for i := range services {
		if err := s.StartService(&services[i]); err != nil {
			logger.Log().WithError(err).WithField("service_id", services[i].ID).Warn("failed to start checker")
		}
	}
	return nil
}

// Start loads a service and schedules it.
func (s *Scheduler) Start(ctx context.Context, serviceID string) error {
	svc, err := s.lookup(ctx, serviceID)
	if err != nil {
		return err
	}
	return s.StartService(svc)
}

// StartService schedules svc, replacing any existing timer for the same id.
// One check runs immediately in the background; later checks follow the
// service interval.
func (s *Scheduler) StartService(svc *models.Service) error {
	if !svc.Enabled {
		s.Stop(svc.ID)
		return ErrServiceDisabled
	}

	svcCopy := *svc
	interval := s.intervalOf(&svcCopy)

	s.mu.Lock()
	if existing, ok := s.jobs[svc.ID]; ok {
		close(existing.stop)
		delete(s.jobs, svc.ID)
	}

	j := &job{
		service: &svcCopy,
		ticker:  time.NewTicker(interval),
		stop:    make(chan struct{}),
	}
	s.jobs[svc.ID] = j
	count := len(s.jobs)
	s.mu.Unlock()

	metrics.SetScheduledServices(count)

	// Run first check immediately
	s.spawn(j)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				s.spawn(j)
			case <-j.stop:
				j.ticker.Stop()
				return
			}
		}
	}()

	logger.WithFields(logrus.Fields{
		"service_id": svc.ID,
		"service":    svc.Name,
		"interval":   interval.String(),
	}).Info("started service checker")

	return nil
}

// Stop cancels the timer of a service and forgets its runtime state.
// An in-flight check still completes and is recorded, but no longer
// counts toward a notification episode.
func (s *Scheduler) Stop(serviceID string) {
	s.mu.Lock()
	j, ok := s.jobs[serviceID]
	if ok {
		close(j.stop)
		delete(s.jobs, serviceID)
	}
	count := len(s.jobs)
	s.mu.Unlock()

	if ok {
		metrics.SetScheduledServices(count)
		logger.Log().WithField("service_id", serviceID).Info("stopped service checker")
	}
}

// Shutdown stops every timer, cancels in-flight timer cycles and waits
// for them to return.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, j := range s.jobs {
		close(j.stop)
		delete(s.jobs, id)
	}
	s.cancel()
	s.mu.Unlock()

	s.cycles.Wait()

	metrics.SetScheduledServices(0)
	logger.Log().Info("all service checkers stopped")
}

// IsScheduled reports whether a timer is active for serviceID.
func (s *Scheduler) IsScheduled(serviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[serviceID]
	return ok
}

// Scheduled returns the ids with an active timer, sorted.
func (s *Scheduler) Scheduled() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// RunOnce performs a full check cycle for serviceID synchronously and
// returns the recorded result. A failed probe is not an error. For a
// scheduled service the result feeds its notification episode; an
// unscheduled service is recorded and broadcast only.
func (s *Scheduler) RunOnce(ctx context.Context, serviceID string) (*models.CheckResult, error) {
	svc, err := s.lookup(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	owner := s.jobs[serviceID]
	s.mu.RUnlock()
	return s.runCycle(ctx, svc, owner)
}

func (s *Scheduler) lookup(ctx context.Context, serviceID string) (*models.Service, error) {
	svc, err := s.store.GetService(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load service %s: %w", serviceID, err)
	}
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	return svc, nil
}

// spawn runs one timer cycle of j in the background. Nothing is spawned
// for a job that was stopped or replaced, or once Shutdown has cancelled
// the scheduler context.
func (s *Scheduler) spawn(j *job) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx.Err() != nil || s.jobs[j.service.ID] != j {
		return
	}
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		// errors are already logged by runCycle
		_, _ = s.runCycle(s.ctx, j.service, j)
	}()
}

// runCycle probes (retrying once on timeout), persists the result, updates
// the runtime state of owner, fires notifications and broadcasts.
func (s *Scheduler) runCycle(ctx context.Context, svc *models.Service, owner *job) (*models.CheckResult, error) {
	retryCount := s.settings.RetryCount(ctx)
	timeout := s.settings.CheckTimeout(ctx)

	res := s.prober.Probe(ctx, svc, timeout)
	if res.TimedOut {
		metrics.IncCheckRetry()
		logger.Log().WithField("service_id", svc.ID).Debug("probe timed out, retrying once")
		if err := sleepCtx(ctx, s.opts.RetryDelay); err != nil {
			return nil, err
		}
		res = s.prober.Probe(ctx, svc, timeout)
	}

	check := &models.CheckResult{
		ID:           uuid.NewString(),
		ServiceID:    svc.ID,
		StatusCode:   res.StatusCode,
		ResponseTime: res.ResponseTimeMs,
		Success:      res.Success,
		CheckedAt:    time.Now().UTC(),
	}
	if res.ErrorMessage != "" {
		msg := res.ErrorMessage
		check.ErrorMessage = &msg
	}

	log := logger.WithFields(logrus.Fields{
		"service_id":       svc.ID,
		"service":          svc.Name,
		"success":          check.Success,
		"status_code":      statusField(check.StatusCode),
		"response_time_ms": check.ResponseTime,
	})

	if err := s.store.InsertCheckResult(ctx, check); err != nil {
		metrics.IncCheckStoreError()
		log.WithError(err).Error("failed to store check result")
		return nil, fmt.Errorf("store check result: %w", err)
	}

	metrics.ObserveCheck(check.Success, time.Duration(check.ResponseTime)*time.Millisecond)
	log.Debug("check completed")

	switch s.recordState(owner, check.Success, retryCount) {
	case transitionDown:
		log.WithField("error", res.ErrorMessage).Warn("service is down")
		s.dispatch(transitionDown, svc, check)
	case transitionUp:
		log.Info("service is back up")
		s.dispatch(transitionUp, svc, check)
	}

	s.broadcast(check)
	return check, nil
}

// recordState applies a check outcome to owner's runtime state. Outcomes
// of a job that is no longer the active one for its service are dropped.
func (s *Scheduler) recordState(owner *job, success bool, retryCount int) transition {
	if owner == nil {
		return transitionNone
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.jobs[owner.service.ID] != owner {
		return transitionNone
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return owner.state.record(success, retryCount)
}

// state returns a copy of the runtime state of the active job for serviceID.
func (s *Scheduler) state(serviceID string) (runtimeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[serviceID]
	if !ok {
		return runtimeState{}, false
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return j.state, true
}

// dispatch runs the notification episode detached from the cycle.
func (s *Scheduler) dispatch(t transition, svc *models.Service, check *models.CheckResult) {
	if s.notifier == nil {
		return
	}
	svcCopy := *svc
	checkCopy := *check

	go func() {
		log := logger.WithFields(logrus.Fields{"service_id": svcCopy.ID, "event": t.String()})
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("notification panicked")
			}
		}()

		var err error
		ctx := context.Background()
		if t == transitionDown {
			err = s.notifier.NotifyDown(ctx, &svcCopy, &checkCopy)
		} else {
			err = s.notifier.NotifyUp(ctx, &svcCopy, &checkCopy)
		}
		if err != nil {
			log.WithError(err).Warn("notification delivery failed")
		}
	}()
}

func (s *Scheduler) broadcast(check *models.CheckResult) {
	if s.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Log().WithField("panic", r).Error("broadcast panicked")
		}
	}()
	s.broadcaster.Broadcast(check.ServiceID, check)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusField(code *int) any {
	if code == nil {
		return nil
	}
	return *code
}
