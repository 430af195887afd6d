package facetx

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// DefaultMaxToFetchExcludingSelections is the default cap on non-selected values
// returned per dimension.
const DefaultMaxToFetchExcludingSelections = 20

// FacetKind selects how the candidate values of a dimension are produced.
type FacetKind int

const (
	// TermFacet dimensions have one candidate value per distinct indexed term.
	TermFacet FacetKind = iota
	// RangeFacet dimensions have one candidate value per configured Range.
	RangeFacet
)

// String implements fmt.Stringer.
func (k FacetKind) String() string {
	switch k {
	case TermFacet:
		return "term"
	case RangeFacet:
		return "range"
	default:
		return "unknown"
	}
}

// Range is a named inclusive interval over the raw terms of a field.
// Bounds are compared as strings. An empty bound is open.
type Range struct {
	ID   string
	From string
	To   string
}

// FacetFieldInfo describes one requested facet dimension.
type FacetFieldInfo struct {
	// FieldName is the indexed field the dimension is computed from.
	FieldName string

	// Kind is TermFacet or RangeFacet.
	Kind FacetKind

	// Selections are the user-selected values. For range dimensions they are range ids.
	Selections []string

	// Ranges are the candidate intervals of a range dimension.
	Ranges []Range

	// MaxToFetchExcludingSelections bounds the number of non-selected values returned.
	MaxToFetchExcludingSelections int
}

// TermField creates a term dimension with the default cap.
func TermField(name string, selections ...string) FacetFieldInfo {
	return FacetFieldInfo{
		FieldName:                     name,
		Kind:                          TermFacet,
		Selections:                    selections,
		MaxToFetchExcludingSelections: DefaultMaxToFetchExcludingSelections,
	}
}

// RangeField creates a range dimension with the default cap.
func RangeField(name string, ranges []Range, selections ...string) FacetFieldInfo {
	return FacetFieldInfo{
		FieldName:                     name,
		Kind:                          RangeFacet,
		Selections:                    selections,
		Ranges:                        ranges,
		MaxToFetchExcludingSelections: DefaultMaxToFetchExcludingSelections,
	}
}

// WithMaxToFetch returns a copy of f with a different cap on non-selected values.
func (f FacetFieldInfo) WithMaxToFetch(n int) FacetFieldInfo {
	f.MaxToFetchExcludingSelections = n
	return f
}

// IsSelected reports whether value is in the selection list.
func (f FacetFieldInfo) IsSelected(value string) bool {
	return slices.Contains(f.Selections, value)
}

// RangeByID returns the configured range with the given id.
func (f FacetFieldInfo) RangeByID(id string) (Range, bool) {
	for _, r := range f.Ranges {
		if r.ID == id {
			return r, true
		}
	}
	return Range{}, false
}

// HasSelections reports whether the dimension constrains other dimensions.
// A range dimension only does so when a selected id resolves to a range with
// both bounds set.
func (f FacetFieldInfo) HasSelections() bool {
	if f.Kind != RangeFacet {
		return len(f.Selections) > 0
	}
	return len(f.selectedRanges()) > 0
}

// selectedRanges returns the bounded ranges referenced by the selection list, in
// selection order.
func (f FacetFieldInfo) selectedRanges() []Range {
	var out []Range
	for _, id := range f.Selections {
		r, ok := f.RangeByID(id)
		if !ok || r.From == "" || r.To == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Validate rejects malformed descriptors. It is called before any index access.
func (f FacetFieldInfo) Validate() error {
	if f.FieldName == "" {
		return errors.Wrap(ErrInvalidFacetField, "field name is empty")
	}
	if f.MaxToFetchExcludingSelections < 0 {
		return errors.Wrapf(ErrInvalidFacetField, "field %q: negative max to fetch %d", f.FieldName, f.MaxToFetchExcludingSelections)
	}

	switch f.Kind {
	case TermFacet:
		if len(f.Ranges) > 0 {
			return errors.Wrapf(ErrInvalidFacetField, "field %q: term facet cannot carry ranges", f.FieldName)
		}
	case RangeFacet:
		if len(f.Ranges) == 0 {
			return errors.Wrapf(ErrInvalidFacetField, "field %q: range facet has no ranges", f.FieldName)
		}
		seen := make(map[string]struct{}, len(f.Ranges))
		for _, r := range f.Ranges {
			if r.ID == "" {
				return errors.Wrapf(ErrInvalidFacetField, "field %q: range with empty id", f.FieldName)
			}
			if _, dup := seen[r.ID]; dup {
				return errors.Wrapf(ErrInvalidFacetField, "field %q: duplicate range id %q", f.FieldName, r.ID)
			}
			seen[r.ID] = struct{}{}
		}
	default:
		return errors.Wrapf(ErrInvalidFacetField, "field %q: unknown kind %d", f.FieldName, int(f.Kind))
	}
	return nil
}
