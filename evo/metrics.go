package evo

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "mnlistdiff"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of diffs built successfully.
	DiffsBuilt metrics.Counter
	// Number of failed diff builds.
	DiffFailures metrics.Counter
	// Time spent building one diff, in seconds.
	BuildSeconds metrics.Histogram
	// Number of new quorums in the last diff built.
	NewQuorums metrics.Gauge
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		DiffsBuilt: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "diffs_built",
			Help:      "Number of masternode list diffs built successfully.",
		}, []string{}),
		DiffFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "diff_failures",
			Help:      "Number of failed masternode list diff builds.",
		}, []string{}),
		BuildSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "build_seconds",
			Help:      "Time spent building one diff, in seconds.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{}),
		NewQuorums: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "new_quorums",
			Help:      "Number of new quorums in the last diff built.",
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		DiffsBuilt:   discard.NewCounter(),
		DiffFailures: discard.NewCounter(),
		BuildSeconds: discard.NewHistogram(),
		NewQuorums:   discard.NewGauge(),
	}
}
