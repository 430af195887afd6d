package facetx

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/singleflight"
)

// FacetValueBitSet is one candidate value of a dimension together with the
// documents carrying it and its global count.
type FacetValueBitSet struct {
	// Value is the term text or range id.
	Value string

	// Count is the number of documents with this value in the whole index.
	Count uint

	bits atomic.Pointer[bitset.BitSet]
}

func newFacetValueBitSet(value string, bs *bitset.BitSet, count uint) *FacetValueBitSet {
	v := &FacetValueBitSet{Value: value, Count: count}
	v.bits.Store(bs)
	return v
}

// BitSet returns the cached documents of the value, or nil once evicted.
// The returned bitset must not be modified.
func (v *FacetValueBitSet) BitSet() *bitset.BitSet {
	return v.bits.Load()
}

// Evict drops the cached bitset. It reports whether a bitset was dropped.
func (v *FacetValueBitSet) Evict() bool {
	return v.bits.Swap(nil) != nil
}

// FacetValues is the cache entry of one field: its values sorted by descending
// global count. The order never changes after creation.
type FacetValues struct {
	Field  string
	Values []*FacetValueBitSet

	// kind and ranges record the descriptor the entry was built from.
	kind   FacetKind
	ranges []Range
}

// builtFrom reports whether the entry can serve info: same kind, and every
// range of info cached with the same bounds. Cached ranges missing from info
// are still listed; once evicted they recompute as unknown values.
func (fv *FacetValues) builtFrom(info FacetFieldInfo) bool {
	if fv.kind != info.Kind {
		return false
	}
	for _, r := range info.Ranges {
		if !slices.Contains(fv.ranges, r) {
			return false
		}
	}
	return true
}

func newFacetValues(field string, values []*FacetValueBitSet) *FacetValues {
	slices.SortStableFunc(values, func(a, b *FacetValueBitSet) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return &FacetValues{Field: field, Values: values}
}

// facetCache maps field names to their FacetValues. Each field is computed at
// most once at a time and stored at most once.
type facetCache struct {
	entries sync.Map // string -> *FacetValues
	group   singleflight.Group
}

func (c *facetCache) get(field string) (*FacetValues, bool) {
	v, ok := c.entries.Load(field)
	if !ok {
		return nil, false
	}
	return v.(*FacetValues), true
}

// getOrCreate returns the entry of field, running build when it is missing.
// Racing callers share one build. The build runs detached from the caller's
// cancellation, so a caller that gives up returns ErrCanceled without failing
// the others, and the entry is still stored once the build completes.
// stored is called once, inside the flight, after a freshly built entry has
// been stored. Failed builds are not cached.
func (c *facetCache) getOrCreate(ctx context.Context, field string, build func(context.Context) (*FacetValues, error), stored func(context.Context, *FacetValues)) (*FacetValues, error) {
	if fv, ok := c.get(field); ok {
		return fv, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(field, func() (interface{}, error) {
		if fv, ok := c.get(field); ok {
			return fv, nil
		}
		fv, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		actual, loaded := c.entries.LoadOrStore(field, fv)
		if !loaded && stored != nil {
			stored(buildCtx, fv)
		}
		return actual, nil
	})

	select {
	case <-ctx.Done():
		return nil, ErrCanceled
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*FacetValues), nil
	}
}

// snapshot returns every cached entry ordered by field name.
func (c *facetCache) snapshot() []*FacetValues {
	var out []*FacetValues
	c.entries.Range(func(_, v any) bool {
		out = append(out, v.(*FacetValues))
		return true
	})
	slices.SortFunc(out, func(a, b *FacetValues) int {
		return cmp.Compare(a.Field, b.Field)
	})
	return out
}
