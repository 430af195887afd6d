package facetx

// Hit represents a single matching document.
type Hit struct {
	// ID is the external identifier of the document.
	ID string

	// DocID is the index-internal document id.
	DocID uint32

	// Score represents the relevance score of this hit.
	Score float64

	// Fields contains the stored document fields as key-value pairs.
	Fields map[string]interface{}
}

// Hits represents the ranked top documents of a query.
type Hits struct {
	// Items contains the top documents, best first.
	Items []Hit

	// Total is the total number of matching documents.
	Total int64

	// MaxScore is the maximum relevance score across the returned items.
	MaxScore float64

	// Took is the time taken to execute the query in milliseconds.
	Took int64
}

// FacetMatch is the count of one facet value within its drilldown context.
type FacetMatch struct {
	// FacetFieldName is the dimension the value belongs to.
	FacetFieldName string

	// Value is the term text, or the range id for range dimensions.
	Value string

	// Count is the number of matching documents with this value once every
	// other dimension's selections are applied.
	Count int64
}

// FacetSearchResult is the response of SearchWithFacets.
type FacetSearchResult struct {
	// Hits holds the top documents with every selection applied.
	Hits *Hits

	// Facets lists matches in dimension request order. Within a dimension,
	// selected values come first, then the rest by descending count.
	Facets []FacetMatch
}

// ForField returns the matches of a single dimension, preserving order.
func (r *FacetSearchResult) ForField(name string) []FacetMatch {
	if r == nil {
		return nil
	}
	var out []FacetMatch
	for _, m := range r.Facets {
		if m.FacetFieldName == name {
			out = append(out, m)
		}
	}
	return out
}
