package metrics

import (
	"time"

	"github.com/pdv-retail/business-alerts/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes.
const (
	OutcomePublished = "published"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	FetchFailures   *prometheus.CounterVec
	Notifications   *prometheus.GaugeVec
	IgnoredTriggers prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "business_alerts_refresh_cycles_total",
			Help: "Total number of refresh cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "business_alerts_refresh_duration_seconds",
			Help:    "Time taken by a refresh cycle",
			Buckets: prometheus.DefBuckets,
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "business_alerts_fetch_failures_total",
			Help: "Total number of failed collection fetches by category",
		}, []string{"category"}),
		Notifications: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "business_alerts_notifications",
			Help: "Number of notifications produced by the latest refresh cycle by category",
		}, []string{"category"}),
		IgnoredTriggers: factory.NewCounter(prometheus.CounterOpts{
			Name: "business_alerts_ignored_triggers_total",
			Help: "Total number of refresh triggers ignored because a cycle was already running",
		}),
	}
}

// ObserveCycle records the outcome and duration of a refresh cycle.
func (m *Metrics) ObserveCycle(outcome string, duration time.Duration) {
	m.Cycles.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(duration.Seconds())
}

// IncrementFetchFailures increments the fetch failure counter for a category.
func (m *Metrics) IncrementFetchFailures(category model.Category) {
	m.FetchFailures.WithLabelValues(string(category)).Inc()
}

// SetCounts publishes the counts of the latest cycle.
func (m *Metrics) SetCounts(counts model.Counts) {
	for _, category := range model.Categories() {
		m.Notifications.WithLabelValues(string(category)).Set(float64(counts.Get(category)))
	}
}

// IncrementIgnoredTriggers increments the ignored trigger counter by 1.
func (m *Metrics) IncrementIgnoredTriggers() {
	m.IgnoredTriggers.Inc()
}
