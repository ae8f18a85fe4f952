// Package metrics exposes Prometheus collectors for the sync agent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitesmith"

// Metrics holds the agent's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	cycles           *prometheus.CounterVec
	changes          *prometheus.CounterVec
	collectionErrors *prometheus.CounterVec
	builds           *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	writeBacks       *prometheus.CounterVec
	trackedRecords   prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cycles_total",
			Help:      "Detection cycles by outcome (changes, idle, error).",
		}, []string{"outcome"}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Detected record changes by collection and type.",
		}, []string{"collection", "type"}),
		collectionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_errors_total",
			Help:      "Failed collection queries.",
		}, []string{"collection"}),
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Builds by final status.",
		}, []string{"status"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of build callbacks.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		writeBacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_writes_total",
			Help:      "Status write-backs to the content source by result.",
		}, []string{"result"}),
		trackedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_records",
			Help:      "Records held in the change-detection snapshot.",
		}),
	}
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Cycle(outcome string) {
	if m != nil {
		m.cycles.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Change(collection, changeType string) {
	if m != nil {
		m.changes.WithLabelValues(collection, changeType).Inc()
	}
}

func (m *Metrics) CollectionError(collection string) {
	if m != nil {
		m.collectionErrors.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) Build(status string, d time.Duration) {
	if m != nil {
		m.builds.WithLabelValues(status).Inc()
		m.buildDuration.Observe(d.Seconds())
	}
}

// WriteBack counts one status write; a nil err counts as success.
func (m *Metrics) WriteBack(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writeBacks.WithLabelValues(result).Inc()
}

func (m *Metrics) Tracked(n int) {
	if m != nil {
		m.trackedRecords.Set(float64(n))
	}
}
