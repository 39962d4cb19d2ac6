/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics holds the Prometheus collectors for graph queries and
// graph replacement. Collectors are registered with controller-runtime's
// registry, which the server exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Query metrics
	queryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lineage_query_total",
		Help: "Total number of dependency queries",
	}, []string{"query", "mode", "result"})

	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lineage_query_duration_seconds",
		Help:    "Duration of dependency queries",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~0.3s
	}, []string{"query", "mode"})

	// Graph replacement metrics
	graphReplacementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lineage_graph_replacements_total",
		Help: "Total number of attempts to replace the loaded graph",
	}, []string{"origin", "result"})

	graphJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lineage_graph_jobs",
		Help: "Number of jobs in the currently loaded graph",
	})

	graphEdges = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lineage_graph_edges",
		Help: "Number of distinct edges in the currently loaded graph",
	})
)

func init() {
	// Register query metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		queryTotal,
		queryDuration,
		graphReplacementsTotal,
		graphJobs,
		graphEdges,
	)
}

// RecordQuery records a query
// query: "upstream", "downstream", "relevant", "check" or "path"
// mode: "direct" or "transitive", empty for queries without a mode
// result: "success", "unknown_job", "no_path" or "error"
func RecordQuery(query, mode, result string, durationSeconds float64) {
	queryTotal.WithLabelValues(query, mode, result).Inc()
	queryDuration.WithLabelValues(query, mode).Observe(durationSeconds)
}

// RecordGraphReplacement records an attempt to replace the loaded graph
// origin: "startup", "upload" or "reset"
// result: "success" or "failure"
func RecordGraphReplacement(origin, result string) {
	graphReplacementsTotal.WithLabelValues(origin, result).Inc()
}

// SetGraphSize sets the gauges describing the loaded graph
func SetGraphSize(jobs, edges int) {
	graphJobs.Set(float64(jobs))
	graphEdges.Set(float64(edges))
}
