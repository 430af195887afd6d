package facetx

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestFacetFieldInfoValidate(t *testing.T) {
	tests := map[string]struct {
		info    FacetFieldInfo
		wantErr bool
	}{
		"term field":     {info: TermField("color", "yellow")},
		"zero cap":       {info: TermField("color").WithMaxToFetch(0)},
		"range field":    {info: RangeField("price", []Range{{ID: "a", To: "10"}})},
		"empty name":     {info: TermField(""), wantErr: true},
		"negative cap":   {info: TermField("color").WithMaxToFetch(-1), wantErr: true},
		"unknown kind":   {info: FacetFieldInfo{FieldName: "color", Kind: FacetKind(7)}, wantErr: true},
		"no ranges":      {info: RangeField("price", nil), wantErr: true},
		"empty range id": {info: RangeField("price", []Range{{From: "0"}}), wantErr: true},
		"duplicate range id": {
			info:    RangeField("price", []Range{{ID: "a", To: "1"}, {ID: "a", To: "2"}}),
			wantErr: true,
		},
		"term field with ranges": {
			info:    FacetFieldInfo{FieldName: "color", Ranges: []Range{{ID: "a"}}},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.info.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFacetField) {
					t.Errorf("Expected ErrInvalidFacetField, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestFacetFieldInfoHasSelections(t *testing.T) {
	ranges := []Range{
		{ID: "bounded", From: "0", To: "10"},
		{ID: "open", From: "10"},
	}

	tests := map[string]struct {
		info FacetFieldInfo
		want bool
	}{
		"term without selections": {info: TermField("color"), want: false},
		"term with selection":     {info: TermField("color", "yellow"), want: true},
		"bounded range":           {info: RangeField("price", ranges, "bounded"), want: true},
		"open range":              {info: RangeField("price", ranges, "open"), want: false},
		"unknown range":           {info: RangeField("price", ranges, "nope"), want: false},
		"open and bounded":        {info: RangeField("price", ranges, "open", "bounded"), want: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.info.HasSelections(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFieldConstructors(t *testing.T) {
	f := TermField("color", "yellow")
	if f.MaxToFetchExcludingSelections != DefaultMaxToFetchExcludingSelections {
		t.Errorf("Expected default cap %d, got %d", DefaultMaxToFetchExcludingSelections, f.MaxToFetchExcludingSelections)
	}
	g := f.WithMaxToFetch(3)
	if g.MaxToFetchExcludingSelections != 3 || f.MaxToFetchExcludingSelections != DefaultMaxToFetchExcludingSelections {
		t.Errorf("Expected WithMaxToFetch to return a modified copy, got %d and %d", g.MaxToFetchExcludingSelections, f.MaxToFetchExcludingSelections)
	}
	if r := RangeField("price", []Range{{ID: "a"}}); r.Kind != RangeFacet || r.Kind.String() != "range" {
		t.Errorf("Expected range kind, got %v", r.Kind)
	}
}
