package facetx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetx_searches_total",
		Help: "The total number of faceted searches",
	})
	cachePopulations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facetx_cache_populations_total",
		Help: "The total number of facet cache entries built, by field",
	}, []string{"field"})
	valuesCounted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetx_facet_values_counted_total",
		Help: "The total number of facet values intersected with a context",
	})
	valuesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetx_facet_values_pruned_total",
		Help: "The total number of facet values skipped by early termination",
	})
	bitsetsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetx_bitsets_evicted_total",
		Help: "The total number of cached value bitsets evicted by the memory optimizer",
	})
	bitsetRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facetx_bitset_recomputes_total",
		Help: "The total number of evicted value bitsets recomputed from the index",
	})
)
