package facetx

import "slices"

// resultCollector accumulates the matches of one dimension: every selected
// value, plus the best maxToFetch non-selected values by count.
type resultCollector struct {
	info        FacetFieldInfo
	selected    []FacetMatch
	nonSelected []FacetMatch // count descending, earlier arrivals first on ties
}

func newResultCollector(info FacetFieldInfo) *resultCollector {
	return &resultCollector{
		info:        info,
		nonSelected: make([]FacetMatch, 0, min(max(info.MaxToFetchExcludingSelections, 0), 64)),
	}
}

func (c *resultCollector) isSelected(value string) bool {
	return c.info.IsSelected(value)
}

func (c *resultCollector) addToSelected(m FacetMatch) {
	c.selected = append(c.selected, m)
}

// addToNonSelected keeps m if it beats the worst kept match. A match equal to
// the worst one loses, so the first seen value wins ties.
func (c *resultCollector) addToNonSelected(m FacetMatch) {
	limit := c.info.MaxToFetchExcludingSelections
	if limit <= 0 {
		return
	}
	if len(c.nonSelected) >= limit && m.Count <= c.nonSelected[len(c.nonSelected)-1].Count {
		return
	}
	i, _ := slices.BinarySearchFunc(c.nonSelected, m.Count, func(e FacetMatch, count int64) int {
		// Position after every element with count >= m.Count.
		if e.Count >= count {
			return -1
		}
		return 1
	})
	c.nonSelected = slices.Insert(c.nonSelected, i, m)
	if len(c.nonSelected) > limit {
		c.nonSelected = c.nonSelected[:limit]
	}
}

// minCountForNonSelected is the smallest kept non-selected count, or 0 while
// the collector is below capacity.
func (c *resultCollector) minCountForNonSelected() int64 {
	if !c.haveEnoughResults() || len(c.nonSelected) == 0 {
		return 0
	}
	return c.nonSelected[len(c.nonSelected)-1].Count
}

func (c *resultCollector) haveEnoughResults() bool {
	return len(c.nonSelected) >= max(c.info.MaxToFetchExcludingSelections, 0)
}

// list returns selected matches followed by non-selected ones.
func (c *resultCollector) list() []FacetMatch {
	out := make([]FacetMatch, 0, len(c.selected)+len(c.nonSelected))
	out = append(out, c.selected...)
	return append(out, c.nonSelected...)
}
