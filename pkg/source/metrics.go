package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lineage_index_cache_lookups_total",
		Help: "Dependency index cache lookups by result (hit or miss)",
	}, []string{"result"})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineage_index_cache_evictions_total",
		Help: "Indexes dropped from the dependency index cache, by capacity or by a cache clear",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lineage_index_cache_entries",
		Help: "Indexes currently held by the dependency index cache",
	})

	// The histogram count doubles as the fetch counter
	fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lineage_source_fetch_duration_seconds",
		Help:    "Time to fetch a dependency document, by source type and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "status"})

	buildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lineage_index_build_duration_seconds",
		Help:    "Time to decode documents and build a dependency index",
		Buckets: prometheus.ExponentialBucketsRange(0.0001, 5, 12),
	})

	malformedDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lineage_malformed_documents_total",
		Help: "Dependency documents rejected while decoding, by format",
	}, []string{"format"})
)

func init() {
	metrics.Registry.MustRegister(
		cacheLookups,
		cacheEvictions,
		cacheEntries,
		fetchDuration,
		buildDuration,
		malformedDocuments,
	)
}

// RecordCacheHit counts a lookup that found an index
func RecordCacheHit() {
	cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a lookup that found nothing
func RecordCacheMiss() {
	cacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheEviction counts an index dropped from the cache
func RecordCacheEviction() {
	cacheEvictions.Inc()
}

// UpdateCacheEntries sets the number of cached indexes
func UpdateCacheEntries(entries int) {
	cacheEntries.Set(float64(entries))
}

// RecordFetch observes one fetch. status is "success" or "failure".
func RecordFetch(fetcherType, status string, durationSeconds float64) {
	fetchDuration.WithLabelValues(fetcherType, status).Observe(durationSeconds)
}

// RecordBuild observes one decode and build
func RecordBuild(durationSeconds float64) {
	buildDuration.Observe(durationSeconds)
}

// RecordMalformed counts a rejected document
func RecordMalformed(format Format) {
	malformedDocuments.WithLabelValues(string(format)).Inc()
}
