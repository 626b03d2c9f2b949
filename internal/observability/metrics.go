// Package observability provides Prometheus metrics for the ingestion path.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gold_rush"

// Metrics holds the ingestion metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	FetchAttempts       *prometheus.CounterVec
	FetchDuration       prometheus.Histogram
	SymbolsProcessed    *prometheus.CounterVec
	BatchRuns           *prometheus.CounterVec
	LastSuccessfulBatch prometheus.Gauge
}

// NewMetrics registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_attempts_total",
			Help:      "Provider fetch attempts by outcome",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of a single provider fetch attempt",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		SymbolsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "symbols_total",
			Help:      "Symbols processed by outcome (inserted, duplicate, or a failure kind)",
		}, []string{"outcome"}),
		BatchRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_total",
			Help:      "Ingestion batches by status",
		}, []string{"status"}),
		LastSuccessfulBatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_successful_batch_timestamp_seconds",
			Help:      "Unix time of the last batch with at least one stored symbol",
		}),
	}
}

func (m *Metrics) ObserveFetchAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveSymbol(outcome string) {
	if m == nil {
		return
	}
	m.SymbolsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBatch(status string, finishedAt time.Time, anySucceeded bool) {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues(status).Inc()
	if anySucceeded {
		m.LastSuccessfulBatch.Set(float64(finishedAt.Unix()))
	}
}
