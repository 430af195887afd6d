package facetx

// BuildFacetedQuery conjoins base with the selections of every dimension other
// than excludedFieldName. An empty excludedFieldName applies all selections and
// yields the hits query; a dimension's own name yields its context query.
//
// base is returned unchanged when no other dimension has selections.
func BuildFacetedQuery(base Expression, fields []FacetFieldInfo, excludedFieldName string) Expression {
	if base == nil {
		base = MatchAll()
	}

	var clauses []Expression
	for _, f := range fields {
		if f.FieldName == excludedFieldName || !f.HasSelections() {
			continue
		}
		clauses = append(clauses, selectionClause(f))
	}
	if len(clauses) == 0 {
		return base
	}
	return And(append([]Expression{base}, clauses...)...)
}

// selectionClause is a single predicate for one selected value, or a
// disjunction when several are selected.
func selectionClause(f FacetFieldInfo) Expression {
	var preds []Expression
	if f.Kind == RangeFacet {
		for _, r := range f.selectedRanges() {
			preds = append(preds, TermRange(f.FieldName, r.From, r.To))
		}
	} else {
		for _, v := range f.Selections {
			preds = append(preds, Eq(f.FieldName, v))
		}
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return Or(preds...)
}

// withFilter conjoins query with the caller filters.
func withFilter(query Expression, filters []Expression) Expression {
	if len(filters) == 0 {
		return query
	}
	return And(append([]Expression{query}, filters...)...)
}
