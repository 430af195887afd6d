package facetx

import (
	"context"
	"iter"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// calculator produces the candidate values of one dimension.
// There are exactly two implementations, chosen by calculatorFor.
type calculator interface {
	// valueBitSets yields every candidate value whose global count reaches the
	// minimum, in no particular order. The sequence is not restartable.
	valueBitSets(ctx context.Context, idx Index, info FacetFieldInfo) iter.Seq2[*FacetValueBitSet, error]

	// bitSet recomputes the documents of a single value.
	bitSet(ctx context.Context, idx Index, info FacetFieldInfo, value string) (*bitset.BitSet, error)
}

func calculatorFor(info FacetFieldInfo, minCount uint64) calculator {
	if info.Kind == RangeFacet {
		return rangeCalculator{minCount: minCount}
	}
	return termCalculator{minCount: minCount}
}

type termCalculator struct {
	minCount uint64
}

func (c termCalculator) valueBitSets(ctx context.Context, idx Index, info FacetFieldInfo) iter.Seq2[*FacetValueBitSet, error] {
	return func(yield func(*FacetValueBitSet, error) bool) {
		for term, err := range idx.Terms(ctx, info.FieldName) {
			if err != nil {
				yield(nil, errors.Wrapf(err, "enumerate terms of %q", info.FieldName))
				return
			}
			bs, err := c.bitSet(ctx, idx, info, term)
			if err != nil {
				yield(nil, err)
				return
			}
			n := bs.Count()
			if uint64(n) < c.minCount {
				continue
			}
			if !yield(newFacetValueBitSet(term, bs, n), nil) {
				return
			}
		}
	}
}

func (termCalculator) bitSet(ctx context.Context, idx Index, info FacetFieldInfo, value string) (*bitset.BitSet, error) {
	bs, err := idx.Evaluate(ctx, Eq(info.FieldName, value))
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %s:%q", info.FieldName, value)
	}
	return bs, nil
}

type rangeCalculator struct {
	minCount uint64
}

func (c rangeCalculator) valueBitSets(ctx context.Context, idx Index, info FacetFieldInfo) iter.Seq2[*FacetValueBitSet, error] {
	return func(yield func(*FacetValueBitSet, error) bool) {
		for _, r := range info.Ranges {
			bs, err := evaluateRange(ctx, idx, info.FieldName, r)
			if err != nil {
				yield(nil, err)
				return
			}
			n := bs.Count()
			if uint64(n) < c.minCount {
				continue
			}
			if !yield(newFacetValueBitSet(r.ID, bs, n), nil) {
				return
			}
		}
	}
}

// bitSet resolves a range id back to its bounds. An unknown id yields an empty
// bitset together with ErrUnknownFacetValue.
func (rangeCalculator) bitSet(ctx context.Context, idx Index, info FacetFieldInfo, value string) (*bitset.BitSet, error) {
	r, ok := info.RangeByID(value)
	if !ok {
		return bitset.New(idx.MaxDoc()), errors.Wrapf(ErrUnknownFacetValue, "range %q of field %q", value, info.FieldName)
	}
	return evaluateRange(ctx, idx, info.FieldName, r)
}

func evaluateRange(ctx context.Context, idx Index, field string, r Range) (*bitset.BitSet, error) {
	bs, err := idx.Evaluate(ctx, TermRange(field, r.From, r.To))
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate range %q of field %q", r.ID, field)
	}
	return bs, nil
}
