package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kabomba_checks_total",
		Help: "Total number of completed service checks by outcome",
	}, []string{"success"})
	checkRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kabomba_check_retries_total",
		Help: "Total number of probe retries after a timeout",
	})
	checkStoreErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kabomba_check_store_errors_total",
		Help: "Total number of check results that could not be persisted",
	})
	probeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kabomba_probe_duration_seconds",
		Help:    "Wall-clock duration of the final probe attempt",
		Buckets: prometheus.DefBuckets,
	})
	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kabomba_notifications_total",
		Help: "Notification deliveries by channel, event and result",
	}, []string{"channel", "event", "result"})
	scheduledServices = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kabomba_scheduled_services",
		Help: "Number of services with an active check timer",
	})
	liveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kabomba_live_clients",
		Help: "Number of connected live broadcast clients",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		checksTotal,
		checkRetriesTotal,
		checkStoreErrorsTotal,
		probeDuration,
		notificationsTotal,
		scheduledServices,
		liveClients,
	)
}

// ObserveCheck records one completed check cycle.
func ObserveCheck(success bool, responseTime time.Duration) {
	checksTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	probeDuration.Observe(responseTime.Seconds())
}

// IncCheckRetry increments the timeout retry counter.
func IncCheckRetry() { checkRetriesTotal.Inc() }

// IncCheckStoreError increments the persistence failure counter.
func IncCheckStoreError() { checkStoreErrorsTotal.Inc() }

// IncNotification counts one delivery attempt.
func IncNotification(channel, event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsTotal.WithLabelValues(channel, event, result).Inc()
}

// SetScheduledServices sets the active timer gauge.
func SetScheduledServices(n int) { scheduledServices.Set(float64(n)) }

// SetLiveClients sets the connected client gauge.
func SetLiveClients(n int) { liveClients.Set(float64(n)) }
