package facetx

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FacetSearcher computes multi-select facet counts over one index snapshot.
//
// The searcher caches, per field name, the documents of every candidate value.
// The cache is never invalidated; a new index snapshot needs a new searcher.
// A FacetSearcher is safe for concurrent use.
type FacetSearcher struct {
	idx       Index
	minCount  uint64
	optimizer MemoryOptimizer
	logger    *slog.Logger
	tracer    trace.Tracer
	cache     facetCache
}

// NewFacetSearcher creates a searcher over idx.
func NewFacetSearcher(idx Index, opts ...Option) *FacetSearcher {
	s := &FacetSearcher{
		idx:    idx,
		logger: slog.Default(),
		tracer: otel.Tracer("facetx"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchWithFacets returns the topResults best documents matching query with
// every selection applied, and the facet counts of every dimension in fields.
//
// Each dimension is counted against its context: query plus the selections of
// all other dimensions. Zero-count matches are dropped unless
// WithIncludeEmptyFacets(true) is given.
func (s *FacetSearcher) SearchWithFacets(ctx context.Context, query Expression, topResults int, fields []FacetFieldInfo, opts ...SearchOption) (*FacetSearchResult, error) {
	select {
	case <-ctx.Done():
		return nil, ErrCanceled
	default:
	}

	if topResults < 0 {
		return nil, errors.Wrapf(ErrInvalidOption, "negative top results %d", topResults)
	}
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	cfg := &SearchConfig{}
	for _, opt := range opts {
		opt.Apply(cfg)
	}

	searchesTotal.Inc()
	ctx, span := s.tracer.Start(ctx, "facetx.search_with_facets",
		trace.WithAttributes(
			attribute.Int("facetx.top_results", topResults),
			attribute.Int("facetx.dimensions", len(fields)),
		),
	)
	defer span.End()

	hits, err := s.idx.Search(ctx, withFilter(BuildFacetedQuery(query, fields, ""), cfg.Filters), topResults)
	if err != nil {
		err = s.indexError(ctx, err, "search hits")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to search hits")
		return nil, err
	}

	mapping := newDocIDMapping(cfg.DocIDMapping, s.idx.MaxDoc())

	var facets []FacetMatch
	for _, f := range fields {
		matches, err := s.countFacet(ctx, query, fields, f, cfg.Filters, mapping)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("failed to count facet %s", f.FieldName))
			return nil, err
		}
		facets = append(facets, matches...)
	}

	if !cfg.IncludeEmptyFacets {
		facets = slices.DeleteFunc(facets, func(m FacetMatch) bool {
			return m.Count == 0
		})
	}

	span.SetStatus(codes.Ok, "faceted search completed")
	return &FacetSearchResult{
		Hits:   hits,
		Facets: facets,
	}, nil
}

// Prime builds the cache entries of fields ahead of the first search.
func (s *FacetSearcher) Prime(ctx context.Context, fields ...FacetFieldInfo) error {
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, err := s.facetValues(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// CachedFields returns the names of the fields currently cached, sorted.
func (s *FacetSearcher) CachedFields() []string {
	var names []string
	for _, fv := range s.cache.snapshot() {
		names = append(names, fv.Field)
	}
	return names
}

// countFacet counts the candidate values of info against its context.
//
// Values are visited in descending global count. A value cannot match more
// documents in a context than in the whole index, so once the collector is full
// and a non-selected value's global count is below the worst kept count, no
// later non-selected value can be kept either. Selected values are always
// counted.
func (s *FacetSearcher) countFacet(ctx context.Context, base Expression, fields []FacetFieldInfo, info FacetFieldInfo, filters []Expression, mapping docIDMapping) ([]FacetMatch, error) {
	ctx, span := s.tracer.Start(ctx, "facetx.count_facet",
		trace.WithAttributes(
			attribute.String("facetx.field", info.FieldName),
			attribute.String("facetx.kind", info.Kind.String()),
		),
	)
	defer span.End()

	ctxBits, err := s.idx.Evaluate(ctx, withFilter(BuildFacetedQuery(base, fields, info.FieldName), filters))
	if err != nil {
		err = s.indexError(ctx, err, "evaluate context of %q", info.FieldName)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to evaluate context")
		return nil, err
	}

	fv, err := s.facetValues(ctx, info)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load facet values")
		return nil, err
	}

	calc := calculatorFor(info, s.minCount)
	collector := newResultCollector(info)
	ctxEmpty := ctxBits.None()

	var scratch *bitset.BitSet
	if mapping != nil && !ctxEmpty {
		scratch = bitset.New(ctxBits.Len())
	}

	pendingSelected := make(map[string]struct{}, len(info.Selections))
	for _, v := range info.Selections {
		pendingSelected[v] = struct{}{}
	}

	pruned := info.MaxToFetchExcludingSelections == 0
	counted := 0
	for _, v := range fv.Values {
		if err := ctx.Err(); err != nil {
			return nil, ErrCanceled
		}

		selected := collector.isSelected(v.Value)
		if selected {
			delete(pendingSelected, v.Value)
		} else {
			if !pruned && collector.haveEnoughResults() &&
				(int64(v.Count) < collector.minCountForNonSelected() || ctxEmpty) {
				pruned = true
			}
			if pruned {
				if len(pendingSelected) == 0 {
					break
				}
				continue
			}
		}

		var count int64
		if !ctxEmpty {
			bits, err := s.valueBitSet(ctx, calc, info, v)
			if err != nil {
				err = s.indexError(ctx, err, "recompute %s:%q", info.FieldName, v.Value)
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to recompute value bitset")
				return nil, err
			}
			count = intersectionCount(ctxBits, bits, mapping, scratch)
		}
		counted++

		m := FacetMatch{
			FacetFieldName: info.FieldName,
			Value:          v.Value,
			Count:          count,
		}
		if selected {
			collector.addToSelected(m)
		} else {
			collector.addToNonSelected(m)
		}
	}

	valuesCounted.Add(float64(counted))
	valuesPruned.Add(float64(len(fv.Values) - counted))
	span.SetAttributes(
		attribute.Int("facetx.values_counted", counted),
		attribute.Int("facetx.values_pruned", len(fv.Values)-counted),
	)
	return collector.list(), nil
}

// valueBitSet returns the cached documents of v, recomputing them when the
// memory optimizer has evicted them. Recomputed bitsets are not stored back.
func (s *FacetSearcher) valueBitSet(ctx context.Context, calc calculator, info FacetFieldInfo, v *FacetValueBitSet) (*bitset.BitSet, error) {
	if bits := v.BitSet(); bits != nil {
		return bits, nil
	}

	bitsetRecomputes.Inc()
	bits, err := calc.bitSet(ctx, s.idx, info, v.Value)
	if errors.Is(err, ErrUnknownFacetValue) {
		// An unresolvable value counts as zero rather than failing the search.
		s.logger.WarnContext(ctx, "Unknown facet value on recompute",
			"field", info.FieldName,
			"value", v.Value,
			"error", err)
		return bits, nil
	}
	return bits, err
}

// facetValues returns the cached values of info, populating them on first use.
// Entries are keyed by field name, so a field keeps the kind and range set it
// was first requested with for the life of the searcher. Requests that change
// the kind, add a range or move its bounds are rejected.
func (s *FacetSearcher) facetValues(ctx context.Context, info FacetFieldInfo) (*FacetValues, error) {
	fv, err := s.cache.getOrCreate(ctx, info.FieldName, func(ctx context.Context) (*FacetValues, error) {
		return s.populate(ctx, info)
	}, s.optimize)
	if err != nil {
		return nil, err
	}
	if !fv.builtFrom(info) {
		return nil, errors.Wrapf(ErrInvalidFacetField,
			"field %q is cached as a %s facet with different ranges", info.FieldName, fv.kind)
	}
	return fv, nil
}

func (s *FacetSearcher) populate(ctx context.Context, info FacetFieldInfo) (*FacetValues, error) {
	ctx, span := s.tracer.Start(ctx, "facetx.populate_cache",
		trace.WithAttributes(
			attribute.String("facetx.field", info.FieldName),
		),
	)
	defer span.End()

	start := time.Now()
	var values []*FacetValueBitSet
	for v, err := range calculatorFor(info, s.minCount).valueBitSets(ctx, s.idx, info) {
		if err != nil {
			err = s.indexError(ctx, err, "populate facet values of %q", info.FieldName)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to populate facet values")
			return nil, err
		}
		values = append(values, v)
	}

	fv := newFacetValues(info.FieldName, values)
	fv.kind = info.Kind
	fv.ranges = slices.Clone(info.Ranges)
	cachePopulations.WithLabelValues(info.FieldName).Inc()
	span.SetAttributes(attribute.Int("facetx.values", len(values)))
	s.logger.InfoContext(ctx, "Cached facet values",
		"field", info.FieldName,
		"kind", info.Kind.String(),
		"values", len(values),
		"duration", time.Since(start))
	return fv, nil
}

// optimize runs the memory optimizer after fv has been stored.
func (s *FacetSearcher) optimize(ctx context.Context, fv *FacetValues) {
	if s.optimizer == nil {
		return
	}
	evicted := 0
	for _, v := range s.optimizer.SelectBitSetsToEvict(s.cache.snapshot()) {
		if v != nil && v.Evict() {
			evicted++
		}
	}
	if evicted > 0 {
		bitsetsEvicted.Add(float64(evicted))
		s.logger.DebugContext(ctx, "Evicted facet value bitsets",
			"field", fv.Field,
			"evicted", evicted)
	}
}

// indexError wraps an index failure. Cancellation wins over everything else;
// failures that are not already classified are marked ErrIndexUnavailable.
func (s *FacetSearcher) indexError(ctx context.Context, err error, format string, args ...interface{}) error {
	if ctx.Err() != nil || errors.Is(err, ErrCanceled) {
		return ErrCanceled
	}
	wrapped := errors.Wrapf(err, format, args...)
	if errors.Is(err, ErrInvalidExpression) || errors.Is(err, ErrIndexUnavailable) {
		return wrapped
	}
	return errors.Mark(wrapped, ErrIndexUnavailable)
}

// docIDMapping folds variant document ids onto their parent. Ids outside the
// table map to themselves.
type docIDMapping []uint32

func newDocIDMapping(m map[uint32]uint32, maxDoc uint) docIDMapping {
	if len(m) == 0 {
		return nil
	}
	var size uint
	for k := range m {
		if uint(k) < maxDoc {
			size = max(size, uint(k)+1)
		}
	}
	if size == 0 {
		return nil
	}
	out := make(docIDMapping, size)
	for i := range out {
		out[i] = uint32(i)
	}
	for k, v := range m {
		if uint(k) < size {
			out[k] = v
		}
	}
	return out
}

func (m docIDMapping) parent(id uint) uint {
	if id < uint(len(m)) {
		return uint(m[id])
	}
	return id
}

// intersectionCount counts |ctxBits ∩ valueBits|. With a mapping the
// intersection is built in scratch and every variant bit is moved to its
// parent before counting. Neither input is modified.
func intersectionCount(ctxBits, valueBits *bitset.BitSet, mapping docIDMapping, scratch *bitset.BitSet) int64 {
	if mapping == nil {
		return int64(ctxBits.IntersectionCardinality(valueBits))
	}

	ctxBits.Copy(scratch)
	scratch.InPlaceIntersection(valueBits)
	limit := uint(len(mapping))
	for i, ok := scratch.NextSet(0); ok && i < limit; i, ok = scratch.NextSet(i + 1) {
		if p := mapping.parent(i); p != i {
			scratch.Clear(i)
			scratch.Set(p)
		}
	}
	return int64(scratch.Count())
}
