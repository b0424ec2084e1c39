// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Build results recorded on CounterBuilds.
const (
	ResultComplete = "complete"
	ResultPartial  = "partial"
	ResultFailed   = "failed"
	ResultCached   = "cached"
)

type Manager struct {
	// counters
	CounterRequests       *prometheus.CounterVec
	CounterBuilds         *prometheus.CounterVec
	CounterSourceFailures *prometheus.CounterVec
	CounterCacheHits      prometheus.Counter
	CounterCacheMisses    prometheus.Counter
	CounterGateChecks     *prometheus.CounterVec
	CounterGateStoreErrs  prometheus.Counter
	CounterImportedSets   prometheus.Counter

	// histograms
	HistRequestDuration prometheus.Histogram
	HistBuildDuration   prometheus.Histogram
	HistContextBytes    prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewTestManager returns a Manager on a private registry.
func NewTestManager() *Manager {
	return NewManager("trainctx", "test", prometheus.NewRegistry())
}

// Discard returns a Manager whose collectors count normally but sit on a
// private registry that no handler exposes. Components given a nil Manager
// use it.
func Discard() *Manager {
	return NewManager("trainctx", "discard", prometheus.NewRegistry())
}

// NewManager registers every collector on reg. When reg is also a
// prometheus.Gatherer, Handler exposes it.
func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	m := &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests",
			Help:      "The total number of API requests",
		}, []string{"method", "status"}),
		CounterBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "context_builds",
			Help:      "Training context builds by result",
		}, []string{"result"}),
		CounterSourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "source_failures",
			Help:      "Source fetches that fell back to an empty default",
		}, []string{"source"}),
		CounterCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "context_cache_hits",
			Help:      "Training contexts served from cache",
		}),
		CounterCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "context_cache_misses",
			Help:      "Training context cache misses",
		}),
		CounterGateChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_gate_checks",
			Help:      "Rate gate checks by status",
		}, []string{"status"}),
		CounterGateStoreErrs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rate_gate_store_errors",
			Help:      "Rate gate storage errors that failed open",
		}),
		CounterImportedSets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "imported_sets",
			Help:      "Sets imported from Alpha Progression exports",
		}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		HistBuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "context_build_duration_seconds",
			Help:      "Training context build duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		HistContextBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "context_bytes",
			Help:      "Serialized training context size in bytes",
			Buckets:   prometheus.ExponentialBuckets(512, 2, 8),
		}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler serves the Prometheus exposition for the manager's registry.
func (m *Manager) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
