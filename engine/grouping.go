package engine

// GroupByProduct partitions order lines into product groups, preserving
// first-seen order of products and input order of lines within a group.
//
// A line with no resolvable product identity cannot be grouped: it is
// skipped and reported as a missing_product_reference warning. One bad
// line never aborts the batch.
func GroupByProduct(lines []OrderLine) (*GroupSet, []Warning) {
	groups := NewGroupSet()
	var warnings []Warning

	for _, line := range lines {
		if line.ProductID == "" {
			warnings = append(warnings, Warning{
				Code:    WarnMissingProductReference,
				LineID:  line.ID,
				Message: "line has no resolvable product identity",
			})
			continue
		}
		groups.Add(line)
	}

	return groups, warnings
}
