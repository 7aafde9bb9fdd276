package chunks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors a Manager reports to.
type Metrics struct {
	Passes          prometheus.Counter
	ChunksCreated   prometheus.Counter
	ChunksDestroyed prometheus.Counter
	ChunkFailures   prometheus.Counter
	Deferred        prometheus.Counter
	Coalesced       prometheus.Counter
	Materialized    prometheus.Gauge
	PassDuration    prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Passes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstream",
			Name:      "update_passes_total",
			Help:      "Streaming update passes that ran.",
		}),
		ChunksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstream",
			Name:      "chunks_created_total",
			Help:      "Chunks materialized and attached.",
		}),
		ChunksDestroyed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstream",
			Name:      "chunks_destroyed_total",
			Help:      "Chunks evicted after leaving the visible range.",
		}),
		ChunkFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstream",
			Name:      "chunk_failures_total",
			Help:      "Chunks that failed to build or attach.",
		}),
		Deferred: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstream",
			Name:      "update_deferred_total",
			Help:      "Update requests deferred because a pass was in progress.",
		}),
		Coalesced: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gridstream",
			Name:      "update_coalesced_total",
			Help:      "Deferred updates replaced by a newer request before running.",
		}),
		Materialized: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridstream",
			Name:      "chunks_materialized",
			Help:      "Chunks currently present in the scene.",
		}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridstream",
			Name:      "update_pass_seconds",
			Help:      "Wall time of one streaming update pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}
