package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector the release tooling exports. A run writes it
// out once, at the end, with WriteTextfile.
var Registry = prometheus.NewRegistry()

var (
	RegistryQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releaseplan_registry_queries_total",
			Help: "Number of registry version queries by outcome (confirmed, not_found, unknown).",
		},
		[]string{"outcome"},
	)
	RegistryCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "releaseplan_registry_cache_hits_total",
			Help: "Number of registry lookups answered from the per-run cache.",
		},
	)
	RegistryQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "releaseplan_registry_query_duration_seconds",
			Help:    "Time taken by registry version queries.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReleaseDescriptorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releaseplan_release_descriptors_total",
			Help: "Number of release candidates processed by result (deployable, published, unknown, error).",
		},
		[]string{"result"},
	)
	ImpactSetSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "releaseplan_impact_set_size",
			Help:    "Number of transitively impacted packages per release candidate.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "releaseplan_plan_duration_seconds",
			Help:    "Time taken to build a release plan.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	Registry.MustRegister(
		RegistryQueriesTotal,
		RegistryCacheHitsTotal,
		RegistryQueryDuration,
		ReleaseDescriptorsTotal,
		ImpactSetSize,
		PlanDuration,
	)
}

// WriteTextfile writes the current metric values in the node-exporter
// textfile format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
