package driver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the collectors of one Environment, registered in their own registry
// so that several environments can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	phases    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	cacheHits prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		phases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kotlite_phases_total",
			Help: "Total number of parse, analyze and run phases started.",
		}, []string{"phase"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kotlite_phase_failures_total",
			Help: "Total number of phases that ended with an error, by error kind.",
		}, []string{"phase", "kind"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kotlite_phase_seconds",
			Help:    "Time spent in a parse, analyze or run phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "kotlite_compile_cache_hits_total",
			Help: "Total number of compilations served from the compile cache.",
		}),
	}
}

func (m *Metrics) observe(phase string, d time.Duration, err error) {
	m.phases.WithLabelValues(phase).Inc()
	m.durations.WithLabelValues(phase).Observe(d.Seconds())
	if err != nil {
		m.failures.WithLabelValues(phase, errorKind(err)).Inc()
	}
}
