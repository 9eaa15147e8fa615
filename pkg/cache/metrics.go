package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_cache_hits_total",
			Help: "Public content lookups served from the in-process cache",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_cache_misses_total",
			Help: "Public content lookups that fell through to the store",
		},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_invalidations_total",
			Help: "Cache invalidations by scope",
		},
		[]string{"scope"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "content_cache_entries",
			Help: "Number of values currently cached",
		},
	)

	broadcastErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_cache_broadcast_errors_total",
			Help: "Invalidation messages that could not be published to other instances",
		},
	)
)
