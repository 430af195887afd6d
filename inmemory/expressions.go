package inmemory

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/facetx"
)

// evaluate returns the live documents matching expr. A nil expression matches
// every document. Callers hold the read lock.
func (ix *Index) evaluate(expr facetx.Expression) (*roaring.Bitmap, error) {
	if expr == nil {
		return ix.allDocs(), nil
	}
	docs, err := ix.evaluateExpression(expr)
	if err != nil {
		return nil, err
	}
	docs.AndNot(ix.deleted)
	return docs, nil
}

// evaluateExpression evaluates a single expression. The returned bitmap is
// always owned by the caller.
func (ix *Index) evaluateExpression(expr facetx.Expression) (*roaring.Bitmap, error) {
	switch e := expr.(type) {
	case facetx.MatchAllExpr:
		return ix.allDocs(), nil
	case facetx.MatchExpr:
		return ix.evaluateMatch(e), nil
	case facetx.AndExpr:
		return ix.evaluateAnd(e)
	case facetx.OrExpr:
		return ix.evaluateOr(e)
	case facetx.NotExpr:
		return ix.evaluateNot(e)
	case facetx.EqExpr:
		return ix.postingsOf(e.Field, e.Term), nil
	case facetx.RangeExpr:
		return ix.evaluateRange(e), nil
	case facetx.ExistsExpr:
		if docs := ix.fieldDocs[e.Field]; docs != nil {
			return docs.Clone(), nil
		}
		return roaring.New(), nil
	default:
		return nil, errors.Wrapf(facetx.ErrInvalidExpression, "unsupported expression %T", expr)
	}
}

// allDocs returns every live document.
func (ix *Index) allDocs() *roaring.Bitmap {
	docs := roaring.New()
	docs.AddRange(0, uint64(len(ix.documents)))
	docs.AndNot(ix.deleted)
	return docs
}

func (ix *Index) postingsOf(field, term string) *roaring.Bitmap {
	if docs := ix.postings[field][term]; docs != nil {
		return docs.Clone()
	}
	return roaring.New()
}

// evaluateMatch matches documents containing any token of the text.
func (ix *Index) evaluateMatch(expr facetx.MatchExpr) *roaring.Bitmap {
	docs := roaring.New()
	for _, tok := range tokenize(expr.Text) {
		if p := ix.postings[expr.Field][tok]; p != nil {
			docs.Or(p)
		}
	}
	return docs
}

// evaluateAnd intersects its operands. An empty AND matches everything.
func (ix *Index) evaluateAnd(expr facetx.AndExpr) (*roaring.Bitmap, error) {
	if len(expr.Exprs) == 0 {
		return ix.allDocs(), nil
	}
	var docs *roaring.Bitmap
	for _, e := range expr.Exprs {
		sub, err := ix.evaluateExpression(e)
		if err != nil {
			return nil, err
		}
		if docs == nil {
			docs = sub
			continue
		}
		docs.And(sub)
	}
	return docs, nil
}

// evaluateOr unions its operands. An empty OR matches nothing.
func (ix *Index) evaluateOr(expr facetx.OrExpr) (*roaring.Bitmap, error) {
	docs := roaring.New()
	for _, e := range expr.Exprs {
		sub, err := ix.evaluateExpression(e)
		if err != nil {
			return nil, err
		}
		docs.Or(sub)
	}
	return docs, nil
}

func (ix *Index) evaluateNot(expr facetx.NotExpr) (*roaring.Bitmap, error) {
	inner, err := ix.evaluateExpression(expr.Inner)
	if err != nil {
		return nil, err
	}
	docs := ix.allDocs()
	docs.AndNot(inner)
	return docs, nil
}

// evaluateRange unions the postings of every term within the inclusive bounds.
// Terms compare as strings.
func (ix *Index) evaluateRange(expr facetx.RangeExpr) *roaring.Bitmap {
	docs := roaring.New()
	for term, p := range ix.postings[expr.Field] {
		if expr.From != "" && term < expr.From {
			continue
		}
		if expr.To != "" && term > expr.To {
			continue
		}
		docs.Or(p)
	}
	return docs
}

// matchClauses collects the full-text clauses that contribute to scoring.
// Negated clauses never do.
func matchClauses(expr facetx.Expression) []facetx.MatchExpr {
	switch e := expr.(type) {
	case facetx.MatchExpr:
		return []facetx.MatchExpr{e}
	case facetx.AndExpr:
		var out []facetx.MatchExpr
		for _, sub := range e.Exprs {
			out = append(out, matchClauses(sub)...)
		}
		return out
	case facetx.OrExpr:
		var out []facetx.MatchExpr
		for _, sub := range e.Exprs {
			out = append(out, matchClauses(sub)...)
		}
		return out
	default:
		return nil
	}
}
