package facetx

import (
	"reflect"
	"testing"
)

func TestBuildFacetedQuery(t *testing.T) {
	base := Match("keywords", "apa")
	prices := []Range{
		{ID: "cheap", From: "0", To: "10"},
		{ID: "mid", From: "11", To: "20"},
		{ID: "open", From: "21"},
	}

	tests := map[string]struct {
		fields   []FacetFieldInfo
		excluded string
		want     Expression
	}{
		"no selections returns base": {
			fields: []FacetFieldInfo{TermField("color"), TermField("type")},
			want:   base,
		},
		"only excluded dimension selected returns base": {
			fields:   []FacetFieldInfo{TermField("color", "yellow"), TermField("type")},
			excluded: "color",
			want:     base,
		},
		"single selection": {
			fields: []FacetFieldInfo{TermField("color", "yellow"), TermField("type")},
			want:   And(base, Eq("color", "yellow")),
		},
		"several selections become a disjunction": {
			fields: []FacetFieldInfo{TermField("color", "yellow", "none")},
			want:   And(base, Or(Eq("color", "yellow"), Eq("color", "none"))),
		},
		"context query excludes own dimension": {
			fields:   []FacetFieldInfo{TermField("color", "yellow"), TermField("type", "fruit")},
			excluded: "type",
			want:     And(base, Eq("color", "yellow")),
		},
		"all dimensions": {
			fields: []FacetFieldInfo{TermField("color", "yellow"), TermField("type", "fruit", "meat")},
			want: And(base,
				Eq("color", "yellow"),
				Or(Eq("type", "fruit"), Eq("type", "meat"))),
		},
		"range selection": {
			fields: []FacetFieldInfo{RangeField("price", prices, "mid")},
			want:   And(base, TermRange("price", "11", "20")),
		},
		"several ranges": {
			fields: []FacetFieldInfo{RangeField("price", prices, "mid", "cheap")},
			want:   And(base, Or(TermRange("price", "11", "20"), TermRange("price", "0", "10"))),
		},
		"open range does not constrain": {
			fields: []FacetFieldInfo{RangeField("price", prices, "open")},
			want:   base,
		},
		"unknown range does not constrain": {
			fields: []FacetFieldInfo{RangeField("price", prices, "missing")},
			want:   base,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := BuildFacetedQuery(base, tt.fields, tt.excluded)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestBuildFacetedQueryNilBase(t *testing.T) {
	got := BuildFacetedQuery(nil, nil, "")
	if !reflect.DeepEqual(got, MatchAll()) {
		t.Errorf("Expected MatchAll, got %#v", got)
	}
}

func TestWithFilter(t *testing.T) {
	q := Eq("color", "yellow")
	if got := withFilter(q, nil); !reflect.DeepEqual(got, q) {
		t.Errorf("Expected query unchanged, got %#v", got)
	}

	f := Not(Eq("type", "meat"))
	want := And(q, f)
	if got := withFilter(q, []Expression{f}); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %#v, got %#v", want, got)
	}
}
