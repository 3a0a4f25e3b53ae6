package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "aquatracking_"

	resultSuccess = "success"
	resultError   = "error"
)

// Alert outcomes recorded per evaluated measurement.
const (
	AlertBreached   = "breached"
	AlertSuppressed = "suppressed"
	AlertDispatched = "dispatched"
	AlertReleased   = "released"
	AlertFailed     = "failed"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	alertOutcomes *prometheus.CounterVec

	notificationsTotal   *prometheus.CounterVec
	notificationsLatency *prometheus.HistogramVec
)

// Init registers service metrics and DB-backed gauges. cooldownEntries, when
// set, is exposed as the live cooldown window count.
func Init(db *sql.DB, logger *log.Logger, cooldownEntries func() float64) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total measurement ingestion calls by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total measurement ingestion errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Measurement ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		alertOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_outcomes_total",
				Help: "Threshold alert outcomes by type",
			},
			[]string{"outcome"},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)
		notificationsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "notification_latency_seconds",
				Help:    "Notification delivery latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			alertOutcomes,
			notificationsTotal,
			notificationsLatency,
		)

		if cooldownEntries != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "cooldown_entries",
					Help: "Alert cooldown windows held in memory",
				},
				cooldownEntries,
			))
		}

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingestion duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingestion error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncAlertOutcome increments alert outcome counters.
func IncAlertOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if alertOutcomes != nil {
		alertOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveNotification records one delivery attempt on a channel.
func ObserveNotification(channel string, err error, duration time.Duration) {
	if channel == "" {
		channel = "unknown"
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, result).Inc()
	}
	if notificationsLatency != nil {
		notificationsLatency.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
