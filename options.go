package facetx

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// SearchOption represents a per-call faceted search option.
type SearchOption interface {
	Apply(*SearchConfig)
}

// SearchConfig holds the per-call parameters of SearchWithFacets.
type SearchConfig struct {
	// IncludeEmptyFacets keeps facet matches whose count is zero.
	IncludeEmptyFacets bool

	// Filters are conjoined with the hits query and every drilldown context query.
	Filters []Expression

	// DocIDMapping folds variant document ids onto their parent before counting.
	// Ids that are not keys map to themselves.
	DocIDMapping map[uint32]uint32
}

func (cfg *SearchConfig) addFilter(expr Expression) {
	if expr != nil {
		cfg.Filters = append(cfg.Filters, expr)
	}
}

// optionFunc is a function that implements SearchOption.
type optionFunc func(*SearchConfig)

// Apply implements the SearchOption interface for optionFunc.
func (f optionFunc) Apply(cfg *SearchConfig) {
	f(cfg)
}

// WithIncludeEmptyFacets controls whether zero-count facet matches are returned.
func WithIncludeEmptyFacets(include bool) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.IncludeEmptyFacets = include
	})
}

// WithFilter adds a caller filter, for example an access-control predicate.
func WithFilter(expr Expression) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.addFilter(expr)
	})
}

// WithDocIDMapping sets the variant-to-parent document id mapping.
func WithDocIDMapping(mapping map[uint32]uint32) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.DocIDMapping = mapping
	})
}

// Option configures a FacetSearcher.
type Option func(*FacetSearcher)

// WithMinimumCount sets minimumCountInTotalDatasetForFacet: values matching fewer
// documents in the whole index are never cached and never returned.
func WithMinimumCount(n uint64) Option {
	return func(s *FacetSearcher) {
		s.minCount = n
	}
}

// WithMemoryOptimizer installs a strategy that may evict cached value bitsets
// after each new field is cached.
func WithMemoryOptimizer(m MemoryOptimizer) Option {
	return func(s *FacetSearcher) {
		s.optimizer = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FacetSearcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for search spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *FacetSearcher) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}
