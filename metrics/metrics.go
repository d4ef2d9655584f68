// Package metrics exposes Prometheus collectors for the maintenance
// engine, planner, and online indexer (spec §11 "Observability").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fdbrecord"

// Registry bundles every collector this module emits, registered once
// against a caller-supplied prometheus.Registerer so a process embedding
// multiple record stores doesn't double-register global defaults.
type Registry struct {
	MaintainerInvocations *prometheus.CounterVec
	MaintainerErrors      *prometheus.CounterVec
	MaintainerLatency     *prometheus.HistogramVec

	PlannerCacheHits   prometheus.Counter
	PlannerCacheMisses prometheus.Counter
	PlanCost           prometheus.Histogram

	IndexBuildBatchLatency *prometheus.HistogramVec
	IndexBuildProgress     *prometheus.GaugeVec
}

// New registers every collector against reg and returns the bundle.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		MaintainerInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "invocations_total",
			Help:      "Number of index maintainer Update/Scan calls, by index name and kind.",
		}, []string{"index", "kind"}),

		MaintainerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "errors_total",
			Help:      "Number of index maintainer calls that returned an error, by index name and kind.",
		}, []string{"index", "kind"}),

		MaintainerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "maintainer",
			Name:      "latency_seconds",
			Help:      "Index maintainer call latency, by index name and kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"index", "kind"}),

		PlannerCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "cache_hits_total",
			Help:      "Query plans served from the planner's shape cache.",
		}),

		PlannerCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "cache_misses_total",
			Help:      "Queries that required full candidate generation and costing.",
		}),

		PlanCost: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "chosen_plan_cost",
			Help:      "Estimated cost of the plan chosen for a query, in the planner's cost units.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),

		IndexBuildBatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "online_index",
			Name:      "batch_latency_seconds",
			Help:      "Online indexer per-batch commit latency, by index name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"index"}),

		IndexBuildProgress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "online_index",
			Name:      "progress_ratio",
			Help:      "Fraction of estimated total keys covered by a running online index build, by index name.",
		}, []string{"index"}),
	}
}
