package inmemory

import (
	"context"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/facetx"
)

// unsupportedExpr is an expression node the index does not know how to evaluate.
type unsupportedExpr struct {
	facetx.MatchAllExpr
}

func TestEvaluate(t *testing.T) {
	ix := newLibrary(t)
	ctx := context.Background()

	tests := map[string]struct {
		query    facetx.Expression
		expected []uint
	}{
		"nil matches all": {
			query:    nil,
			expected: []uint{0, 1, 2, 3, 4},
		},
		"match all": {
			query:    facetx.MatchAll(),
			expected: []uint{0, 1, 2, 3, 4},
		},
		"eq": {
			query:    facetx.Eq("category", "programming"),
			expected: []uint{0, 1, 4},
		},
		"eq number": {
			query:    facetx.Eq("year", "2020"),
			expected: []uint{0, 2},
		},
		"eq is exact": {
			query:    facetx.Eq("author", "John Doe"),
			expected: []uint{0, 4},
		},
		"eq is case sensitive": {
			query:    facetx.Eq("author", "john doe"),
			expected: []uint{},
		},
		"eq multi-valued": {
			query:    facetx.Eq("tags", "python"),
			expected: []uint{1, 2},
		},
		"eq nested": {
			query:    facetx.Eq("publisher.name", "Acme"),
			expected: []uint{0},
		},
		"match": {
			query:    facetx.Match("title", "programming"),
			expected: []uint{0},
		},
		"match any token": {
			query:    facetx.Match("title", "PYTHON data"),
			expected: []uint{1, 2},
		},
		"match without tokens": {
			query:    facetx.Match("title", " ... "),
			expected: []uint{},
		},
		"range": {
			query:    facetx.TermRange("price", "02500", "03500"),
			expected: []uint{0, 4},
		},
		"range inclusive upper bound": {
			query:    facetx.TermRange("price", "", "02999"),
			expected: []uint{0, 1},
		},
		"range open upper bound": {
			query:    facetx.TermRange("price", "04000", ""),
			expected: []uint{3},
		},
		"and": {
			query:    facetx.And(facetx.Eq("category", "programming"), facetx.Eq("year", "2021")),
			expected: []uint{1, 4},
		},
		"empty and": {
			query:    facetx.And(),
			expected: []uint{0, 1, 2, 3, 4},
		},
		"or": {
			query:    facetx.Or(facetx.Eq("category", "data"), facetx.Eq("tags", "golang")),
			expected: []uint{0, 2, 3},
		},
		"empty or": {
			query:    facetx.Or(),
			expected: []uint{},
		},
		"not": {
			query:    facetx.Not(facetx.Eq("category", "programming")),
			expected: []uint{2, 3},
		},
		"exists": {
			query:    facetx.Exists("tags"),
			expected: []uint{0, 1, 2, 4},
		},
		"not exists": {
			query:    facetx.Not(facetx.Exists("tags")),
			expected: []uint{3},
		},
		"exists unknown field": {
			query:    facetx.Exists("isbn"),
			expected: []uint{},
		},
		"nested boolean": {
			query: facetx.And(
				facetx.Or(facetx.Eq("tags", "python"), facetx.Eq("tags", "javascript")),
				facetx.Not(facetx.Eq("year", "2020")),
			),
			expected: []uint{1, 4},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			bs, err := ix.Evaluate(ctx, tt.query)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if bs.Len() != ix.MaxDoc() {
				t.Errorf("Expected bitset length %d, got %d", ix.MaxDoc(), bs.Len())
			}
			if got := docIDs(bs); !slices.Equal(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEvaluateDoesNotMutatePostings(t *testing.T) {
	ix := newLibrary(t)
	ctx := context.Background()

	if _, err := ix.Evaluate(ctx, facetx.And(facetx.Eq("category", "programming"), facetx.Eq("year", "2021"))); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	bs, err := ix.Evaluate(ctx, facetx.Eq("category", "programming"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := docIDs(bs); !slices.Equal(got, []uint{0, 1, 4}) {
		t.Errorf("Expected postings to be intact, got %v", got)
	}
}

func TestEvaluateErrors(t *testing.T) {
	ix := newLibrary(t)

	t.Run("unsupported expression", func(t *testing.T) {
		_, err := ix.Evaluate(context.Background(), facetx.And(facetx.MatchAll(), unsupportedExpr{}))
		if !errors.Is(err, facetx.ErrInvalidExpression) {
			t.Errorf("Expected ErrInvalidExpression, got %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := ix.Evaluate(ctx, facetx.MatchAll()); !errors.Is(err, facetx.ErrCanceled) {
			t.Errorf("Expected ErrCanceled, got %v", err)
		}
	})
}
