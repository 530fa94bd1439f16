package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/kabomba-status/internal/models"
	"github.com/fuomag9/kabomba-status/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	services  map[string]*models.Service
	checks    []models.CheckResult
	insertErr error
}

func newFakeStore(services ...*models.Service) *fakeStore {
	fs := &fakeStore{services: map[string]*models.Service{}}
	for _, s := range services {
		fs.services[s.ID] = s
	}
	return fs
}

func (f *fakeStore) ListEnabledServices(ctx context.Context) ([]models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Service
	for _, s := range f.services {
		if s.Enabled {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetService(ctx context.Context, id string) (*models.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) InsertCheckResult(ctx context.Context, check *models.CheckResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.checks = append(f.checks, *check)
	return nil
}

func (f *fakeStore) count(serviceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.checks {
		if c.ServiceID == serviceID {
			n++
		}
	}
	return n
}

// scriptedProber returns the scripted results in order, then successes.
type scriptedProber struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

func (p *scriptedProber) Probe(ctx context.Context, svc *models.Service, timeout time.Duration) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return ok200()
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r
}

func (p *scriptedProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func ok200() Result {
	code := 200
	return Result{StatusCode: &code, Success: true, ResponseTimeMs: 12}
}

func fail500() Result {
	code := 500
	return Result{StatusCode: &code, ErrorMessage: "Expected status 200, got 500", ResponseTimeMs: 8}
}

func timedOut() Result {
	return Result{ErrorMessage: TimeoutMessage, TimedOut: true, ResponseTimeMs: 50}
}

type fixedSettings struct {
	retry   atomic.Int32
	timeout time.Duration
}

func newSettings(retry int) *fixedSettings {
	s := &fixedSettings{timeout: time.Second}
	s.retry.Store(int32(retry))
	return s
}

func (s *fixedSettings) RetryCount(ctx context.Context) int            { return int(s.retry.Load()) }
func (s *fixedSettings) CheckTimeout(ctx context.Context) time.Duration { return s.timeout }

type recordingNotifier struct {
	downs atomic.Int32
	ups   atomic.Int32
	err   error
}

func (n *recordingNotifier) NotifyDown(ctx context.Context, svc *models.Service, check *models.CheckResult) error {
	n.downs.Add(1)
	return n.err
}

func (n *recordingNotifier) NotifyUp(ctx context.Context, svc *models.Service, check *models.CheckResult) error {
	n.ups.Add(1)
	return n.err
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	checks []models.CheckResult
}

func (b *recordingBroadcaster) Broadcast(serviceID string, check *models.CheckResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks = append(b.checks, *check)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.checks)
}

type harness struct {
	store       *fakeStore
	prober      *scriptedProber
	settings    *fixedSettings
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
	scheduler   *Scheduler
}

func newHarness(t *testing.T, retry int, results ...Result) *harness {
	t.Helper()
	h := &harness{
		store:       newFakeStore(newService("http://svc.test")),
		prober:      &scriptedProber{results: results},
		settings:    newSettings(retry),
		notifier:    &recordingNotifier{},
		broadcaster: &recordingBroadcaster{},
	}
	h.scheduler = NewScheduler(h.store, h.prober, h.settings, h.notifier, h.broadcaster, Options{
		MinInterval: time.Millisecond,
		RetryDelay:  10 * time.Millisecond,
	})
	t.Cleanup(h.scheduler.Shutdown)
	return h
}

// newTrackedHarness schedules svc-1 on an hourly timer and waits for the
// immediate check, which consumes a leading success, so that RunOnce
// results feed the job's notification episode.
func newTrackedHarness(t *testing.T, retry int, results ...Result) *harness {
	t.Helper()
	h := newHarness(t, retry, append([]Result{ok200()}, results...)...)
	h.scheduler.intervalOf = func(*models.Service) time.Duration { return time.Hour }
	h.track(t)
	return h
}

func (h *harness) track(t *testing.T) {
	t.Helper()
	seen := h.broadcaster.count()
	require.NoError(t, h.scheduler.Start(context.Background(), "svc-1"))
	require.Eventually(t, func() bool { return h.broadcaster.count() == seen+1 }, time.Second, 5*time.Millisecond)
}

func (h *harness) runN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := h.scheduler.RunOnce(context.Background(), "svc-1")
		require.NoError(t, err)
	}
}

func (h *harness) expectNotifications(t *testing.T, downs, ups int32) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.notifier.downs.Load() == downs && h.notifier.ups.Load() == ups
	}, time.Second, 5*time.Millisecond)
	// detached deliveries must not keep arriving
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, downs, h.notifier.downs.Load())
	assert.Equal(t, ups, h.notifier.ups.Load())
}

func TestStartService_Idempotent(t *testing.T) {
	h := newHarness(t, 0)
	h.scheduler.intervalOf = func(*models.Service) time.Duration { return time.Hour }
	svc := newService("http://svc.test")

	require.NoError(t, h.scheduler.StartService(svc))
	h.scheduler.mu.RLock()
	first := h.scheduler.jobs[svc.ID]
	h.scheduler.mu.RUnlock()

	require.NoError(t, h.scheduler.StartService(svc))

	assert.Equal(t, []string{svc.ID}, h.scheduler.Scheduled())
	select {
	case <-first.stop:
	default:
		t.Fatal("replaced job was not stopped")
	}

	// one immediate check per start, no timer firing within an hour
	require.Eventually(t, func() bool { return h.prober.callCount() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, h.prober.callCount())
}

func TestStartService_TicksUntilStopped(t *testing.T) {
	h := newHarness(t, 0)
	h.scheduler.intervalOf = func(*models.Service) time.Duration { return 20 * time.Millisecond }

	require.NoError(t, h.scheduler.Start(context.Background(), "svc-1"))
	assert.True(t, h.scheduler.IsScheduled("svc-1"))
	require.Eventually(t, func() bool { return h.store.count("svc-1") >= 3 }, 2*time.Second, 5*time.Millisecond)

	h.scheduler.Stop("svc-1")
	assert.False(t, h.scheduler.IsScheduled("svc-1"))

	time.Sleep(30 * time.Millisecond)
	settled := h.prober.callCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, h.prober.callCount())
}

func TestStartService_Disabled(t *testing.T) {
	h := newHarness(t, 0)
	svc := newService("http://svc.test")
	svc.Enabled = false

	assert.ErrorIs(t, h.scheduler.StartService(svc), ErrServiceDisabled)
	assert.False(t, h.scheduler.IsScheduled(svc.ID))
}

func TestStart_UnknownService(t *testing.T) {
	h := newHarness(t, 0)
	assert.ErrorIs(t, h.scheduler.Start(context.Background(), "nope"), ErrServiceNotFound)

	_, err := h.scheduler.RunOnce(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestInitializeAll_StartsEnabledOnly(t *testing.T) {
	h := newHarness(t, 0)
	h.scheduler.intervalOf = func(*models.Service) time.Duration { return time.Hour }
	off := newService("http://off.test")
	off.ID = "svc-off"
	off.Enabled = false
	h.store.services[off.ID] = off

	require.NoError(t, h.scheduler.InitializeAll(context.Background()))

	assert.Equal(t, []string{"svc-1"}, h.scheduler.Scheduled())
	require.Eventually(t, func() bool { return h.store.count("svc-1") == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.store.count("svc-off"))
}

func TestRunOnce_DebounceRetryZero(t *testing.T) {
	h := newTrackedHarness(t, 0, fail500(), fail500(), fail500(), ok200())
	h.runN(t, 4)
	h.expectNotifications(t, 1, 1)
}

func TestRunOnce_DebounceAlternating(t *testing.T) {
	h := newTrackedHarness(t, 0, fail500(), ok200(), fail500(), ok200())
	h.runN(t, 4)
	h.expectNotifications(t, 2, 2)
}

func TestRunOnce_RetryThreshold(t *testing.T) {
	h := newTrackedHarness(t, 2, fail500(), fail500())
	h.runN(t, 2)
	h.expectNotifications(t, 0, 0)

	h.prober.mu.Lock()
	h.prober.results = []Result{fail500(), fail500()}
	h.prober.mu.Unlock()
	h.runN(t, 2)
	h.expectNotifications(t, 1, 0)
}

func TestRunOnce_RecoveryBeforeThreshold(t *testing.T) {
	h := newTrackedHarness(t, 2, fail500(), fail500(), ok200())
	h.runN(t, 3)
	h.expectNotifications(t, 0, 0)
}

func TestRunOnce_RetriesTimeoutOnce(t *testing.T) {
	h := newHarness(t, 0, timedOut(), ok200())

	check, err := h.scheduler.RunOnce(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.True(t, check.Success)
	assert.Equal(t, 2, h.prober.callCount())
	assert.Equal(t, 1, h.store.count("svc-1"))
}

func TestRunOnce_TimeoutRetryIsBounded(t *testing.T) {
	h := newTrackedHarness(t, 0, timedOut(), timedOut(), timedOut())

	check, err := h.scheduler.RunOnce(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.False(t, check.Success)
	assert.Nil(t, check.StatusCode)
	require.NotNil(t, check.ErrorMessage)
	assert.Equal(t, TimeoutMessage, *check.ErrorMessage)
	assert.Equal(t, 3, h.prober.callCount())
	h.expectNotifications(t, 1, 0)
}

func TestRunOnce_OtherFailuresNotRetried(t *testing.T) {
	h := newHarness(t, 0, fail500(), ok200())

	check, err := h.scheduler.RunOnce(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.False(t, check.Success)
	assert.Equal(t, 1, h.prober.callCount())
}

func TestRunOnce_BroadcastsEveryCycle(t *testing.T) {
	h := newHarness(t, 0, ok200(), fail500(), fail500(), ok200(), ok200())

	var ids []string
	for i := 0; i < 5; i++ {
		check, err := h.scheduler.RunOnce(context.Background(), "svc-1")
		require.NoError(t, err)
		ids = append(ids, check.ID)
	}

	require.Equal(t, 5, h.broadcaster.count())
	for i, c := range h.broadcaster.checks {
		assert.Equal(t, ids[i], c.ID)
		assert.Equal(t, "svc-1", c.ServiceID)
	}
}

func TestRunOnce_StoreFailureSkipsSideEffects(t *testing.T) {
	h := newHarness(t, 0, fail500())
	h.store.insertErr = errors.New("db down")

	_, err := h.scheduler.RunOnce(context.Background(), "svc-1")
	require.Error(t, err)
	assert.Zero(t, h.broadcaster.count())
	h.expectNotifications(t, 0, 0)

	_, tracked := h.scheduler.state("svc-1")
	assert.False(t, tracked)
}

func TestRunOnce_StoreFailureLeavesEpisodeUntouched(t *testing.T) {
	h := newTrackedHarness(t, 0, fail500())
	h.store.mu.Lock()
	h.store.insertErr = errors.New("db down")
	h.store.mu.Unlock()

	_, err := h.scheduler.RunOnce(context.Background(), "svc-1")
	require.Error(t, err)
	h.expectNotifications(t, 0, 0)

	st, tracked := h.scheduler.state("svc-1")
	require.True(t, tracked)
	assert.Zero(t, st.consecutiveFailures)
	assert.False(t, st.notifiedDown)
}

func TestRunOnce_UnscheduledServiceKeepsNoEpisode(t *testing.T) {
	h := newHarness(t, 0, fail500(), fail500(), ok200())
	h.runN(t, 3)

	assert.Equal(t, 3, h.store.count("svc-1"))
	assert.Equal(t, 3, h.broadcaster.count())
	h.expectNotifications(t, 0, 0)
	_, tracked := h.scheduler.state("svc-1")
	assert.False(t, tracked)
}

func TestRunOnce_NotificationErrorsAreSwallowed(t *testing.T) {
	h := newTrackedHarness(t, 0, fail500())
	h.notifier.err = errors.New("webhook 500")

	check, err := h.scheduler.RunOnce(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.False(t, check.Success)
	h.expectNotifications(t, 1, 0)
}

func TestRunOnce_LiveReconfiguration(t *testing.T) {
	h := newTrackedHarness(t, 5, fail500(), fail500())
	h.runN(t, 1)
	h.settings.retry.Store(0)
	h.runN(t, 1)
	h.expectNotifications(t, 1, 0)
}

func TestStop_DiscardsRuntimeState(t *testing.T) {
	h := newTrackedHarness(t, 0, fail500(), fail500())

	h.runN(t, 1)
	h.expectNotifications(t, 1, 0)

	h.scheduler.Stop("svc-1")
	_, tracked := h.scheduler.state("svc-1")
	assert.False(t, tracked)

	// the immediate check of the restarted job opens a fresh episode
	h.track(t)
	h.expectNotifications(t, 2, 0)
}

// gatedProber fails every probe; the first one blocks until released or
// until its context is cancelled.
type gatedProber struct {
	entered  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
	firstErr atomic.Value
}

func newGatedProber() *gatedProber {
	return &gatedProber{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatedProber) Probe(ctx context.Context, svc *models.Service, timeout time.Duration) Result {
	if p.calls.Add(1) == 1 {
		close(p.entered)
		select {
		case <-p.release:
		case <-ctx.Done():
			p.firstErr.Store(ctx.Err())
		}
	}
	return fail500()
}

func newGatedScheduler(t *testing.T, p Prober) (*Scheduler, *fakeStore, *recordingNotifier) {
	t.Helper()
	fs := newFakeStore(newService("http://svc.test"))
	n := &recordingNotifier{}
	s := NewScheduler(fs, p, newSettings(0), n, &recordingBroadcaster{}, Options{MinInterval: time.Millisecond})
	s.intervalOf = func(*models.Service) time.Duration { return time.Hour }
	t.Cleanup(s.Shutdown)
	return s, fs, n
}

func TestStop_InFlightCycleDoesNotRecreateState(t *testing.T) {
	p := newGatedProber()
	s, fs, n := newGatedScheduler(t, p)

	require.NoError(t, s.Start(context.Background(), "svc-1"))
	<-p.entered
	s.Stop("svc-1")
	close(p.release)

	// the late result is still persisted
	require.Eventually(t, func() bool { return fs.count("svc-1") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, n.downs.Load())
	_, tracked := s.state("svc-1")
	assert.False(t, tracked)
}

func TestStartService_StaleCycleDoesNotTouchReplacement(t *testing.T) {
	p := newGatedProber()
	s, fs, n := newGatedScheduler(t, p)
	svc := newService("http://svc.test")

	require.NoError(t, s.StartService(svc))
	<-p.entered
	// the replacement's immediate check fails and opens one episode
	require.NoError(t, s.StartService(svc))
	require.Eventually(t, func() bool { return n.downs.Load() == 1 }, time.Second, 5*time.Millisecond)

	close(p.release)
	require.Eventually(t, func() bool { return fs.count("svc-1") == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), n.downs.Load())
	st, tracked := s.state("svc-1")
	require.True(t, tracked)
	assert.Equal(t, 1, st.consecutiveFailures)
}

func TestShutdown_CancelsInFlightCycles(t *testing.T) {
	p := newGatedProber()
	s, _, n := newGatedScheduler(t, p)

	require.NoError(t, s.Start(context.Background(), "svc-1"))
	<-p.entered

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return")
	}

	assert.ErrorIs(t, p.firstErr.Load().(error), context.Canceled)
	assert.Zero(t, n.downs.Load())
}

func TestScenario_DownThenUp(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	fs := newFakeStore(newService(srv.URL))
	notifier := &recordingNotifier{}
	bc := &recordingBroadcaster{}
	s := NewScheduler(fs, NewHTTPProber(nil), newSettings(0), notifier, bc, Options{MinInterval: time.Millisecond})
	defer s.Shutdown()
	s.intervalOf = func(*models.Service) time.Duration { return time.Hour }
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "svc-1"))
	require.Eventually(t, func() bool { return bc.count() == 1 }, time.Second, 5*time.Millisecond)

	check, err := s.RunOnce(ctx, "svc-1")
	require.NoError(t, err)
	assert.True(t, check.Success)

	status.Store(http.StatusServiceUnavailable)
	check, err = s.RunOnce(ctx, "svc-1")
	require.NoError(t, err)
	assert.False(t, check.Success)
	assert.Equal(t, 503, *check.StatusCode)

	status.Store(http.StatusOK)
	check, err = s.RunOnce(ctx, "svc-1")
	require.NoError(t, err)
	assert.True(t, check.Success)

	require.Eventually(t, func() bool {
		return notifier.downs.Load() == 1 && notifier.ups.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, bc.count())
}

func TestScenario_TimeoutThenRecoveredRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fs := newFakeStore(newService(srv.URL))
	settings := newSettings(0)
	settings.timeout = 50 * time.Millisecond
	s := NewScheduler(fs, NewHTTPProber(nil), settings, nil, nil, Options{MinInterval: time.Millisecond, RetryDelay: 10 * time.Millisecond})
	defer s.Shutdown()

	check, err := s.RunOnce(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.True(t, check.Success)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, fs.count("svc-1"))
}

func TestInterval_ClampedToMinimum(t *testing.T) {
	s := NewScheduler(newFakeStore(), &scriptedProber{}, newSettings(0), nil, nil, Options{MinInterval: 10 * time.Second})
	svc := newService("http://x")

	svc.CheckInterval = 1
	assert.Equal(t, 10*time.Second, s.intervalOf(svc))
	svc.CheckInterval = 90
	assert.Equal(t, 90*time.Second, s.intervalOf(svc))
}
