package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total transform invocations partitioned by outcome
	transformsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_transforms_total",
			Help: "Total link tracking transformations partitioned by outcome",
		},
		[]string{"outcome"},
	)

	// Cache hits on the transformed content cache
	transformCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_transform_cache_hits_total",
			Help: "Transformed content served from cache",
		},
	)

	// Callers that failed to take the content lock and fell back
	mutexFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_transform_mutex_fallbacks_total",
			Help: "Transformations that returned untransformed content after lock timeout",
		},
	)

	// Newly discovered tracked URLs persisted
	persistedURLs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracked_urls_persisted_total",
			Help: "Tracked URL rows written by the transformer",
		},
	)
)

const (
	transformOutcomeTransformed = "transformed"
	transformOutcomeCached      = "cached"
	transformOutcomeFallback    = "fallback"
	transformOutcomeError       = "error"
)
