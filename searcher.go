package facetx

import "context"

// Searcher defines the faceted search interface.
type Searcher interface {
	// SearchWithFacets runs query for the top hits and counts every requested
	// facet dimension against its drilldown context.
	SearchWithFacets(ctx context.Context, query Expression, topResults int, fields []FacetFieldInfo, opts ...SearchOption) (*FacetSearchResult, error)
}

// SearcherFunc is a function type that implements the Searcher interface.
// This allows using a function as a Searcher, similar to http.HandlerFunc.
type SearcherFunc func(context.Context, Expression, int, []FacetFieldInfo, ...SearchOption) (*FacetSearchResult, error)

// SearchWithFacets implements the Searcher interface for SearcherFunc.
func (f SearcherFunc) SearchWithFacets(ctx context.Context, query Expression, topResults int, fields []FacetFieldInfo, opts ...SearchOption) (*FacetSearchResult, error) {
	return f(ctx, query, topResults, fields, opts...)
}

var _ Searcher = (*FacetSearcher)(nil)
