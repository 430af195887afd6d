package facetx

import (
	"context"
	"iter"

	"github.com/bits-and-blooms/bitset"
)

// Index is the read-only full-text index that facets are computed over.
//
// Document ids are dense integers in [0, MaxDoc). Every bitset returned by
// Evaluate must have length MaxDoc so that bitsets of the same index can be
// intersected directly.
type Index interface {
	// Search executes query and returns the topN best documents together with
	// the total match count.
	Search(ctx context.Context, query Expression, topN int) (*Hits, error)

	// Evaluate materializes the set of documents matching query.
	Evaluate(ctx context.Context, query Expression) (*bitset.BitSet, error)

	// Terms enumerates the distinct terms of field in any order. Each term can
	// be resolved to its documents with Eq(field, term).
	Terms(ctx context.Context, field string) iter.Seq2[string, error]

	// MaxDoc is one greater than the largest document id.
	MaxDoc() uint
}
