package facetx

// MemoryOptimizer chooses cached value bitsets to drop after a new field has
// been cached. Evicted values keep their place and global count; their bitset
// is recomputed from the index whenever it is needed again.
type MemoryOptimizer interface {
	SelectBitSetsToEvict(snapshot []*FacetValues) []*FacetValueBitSet
}

// MemoryOptimizerFunc adapts a function to MemoryOptimizer.
type MemoryOptimizerFunc func(snapshot []*FacetValues) []*FacetValueBitSet

// SelectBitSetsToEvict implements MemoryOptimizer.
func (f MemoryOptimizerFunc) SelectBitSetsToEvict(snapshot []*FacetValues) []*FacetValueBitSet {
	return f(snapshot)
}

// TailEvictionOptimizer keeps the bitsets of the KeepPerField most frequent
// values of every field and evicts the rest. The tail is what the pruning
// rule usually never reaches.
type TailEvictionOptimizer struct {
	KeepPerField int
}

// SelectBitSetsToEvict implements MemoryOptimizer.
func (o TailEvictionOptimizer) SelectBitSetsToEvict(snapshot []*FacetValues) []*FacetValueBitSet {
	keep := max(o.KeepPerField, 0)
	var out []*FacetValueBitSet
	for _, fv := range snapshot {
		if len(fv.Values) <= keep {
			continue
		}
		for _, v := range fv.Values[keep:] {
			if v.BitSet() != nil {
				out = append(out, v)
			}
		}
	}
	return out
}
