// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "splitthat"

var (
	// Extractions counts receipt extractions by result
	// (ok, unsupported_media, parsing_error, schema_violation, inference_error, cached).
	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Receipt extractions by result.",
	}, []string{"result"})

	// Publishes counts publish attempts by mode (create, update) and result.
	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publishes_total",
		Help:      "Publish attempts by mode and result.",
	}, []string{"mode", "result"})

	// RPCs counts finished RPCs by procedure and connect code ("ok" on success).
	RPCs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpcs_total",
		Help:      "Finished RPCs by procedure and code.",
	}, []string{"procedure", "code"})

	// CacheLookups counts read-through lookups by keyspace and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by keyspace and result.",
	}, []string{"keyspace", "result"})

	// CacheInvalidationErrors counts failed invalidations. Each one is a
	// staleness window bounded by the entry TTL.
	CacheInvalidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidation_errors_total",
		Help:      "Failed cache invalidations by keyspace.",
	}, []string{"keyspace"})
)
