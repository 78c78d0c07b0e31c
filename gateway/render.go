package gateway

import "fmt"

// renderUnnestedSelection renders the relation that reconstitutes N rows of
// typed columns from len(cols) parallel array parameters: $i binds the i-th
// column's values across all N input rows. Duplicate tuples are collapsed
// here, before any join against the target table; reassembly still fills
// every input position.
func renderUnnestedSelection(cols []ColumnMetadata) string {
	casts := make([]string, len(cols))
	for i, c := range cols {
		casts[i] = fmt.Sprintf("$%d::%s[]", i+1, c.SQLType)
	}
	return "SELECT DISTINCT ON (__k.*) __k.* AS __n FROM UNNEST(" +
		renderList(casts) + ") AS __k(" + renderSelectionSet(cols) + ")"
}

// renderMatchPredicate ANDs column equality between two relation aliases.
func renderMatchPredicate(left, right string, cols []ColumnMetadata) string {
	preds := make([]string, len(cols))
	for i, c := range cols {
		preds[i] = QuoteIdentifier(left) + "." + QuoteIdentifier(c.ColumnName) +
			" = " + QuoteIdentifier(right) + "." + QuoteIdentifier(c.ColumnName)
	}
	out := preds[0]
	for _, p := range preds[1:] {
		out += " AND " + p
	}
	return out
}

// renderExcludedAssignments renders the DO UPDATE SET list, assigning every
// setter column from the incoming (excluded) row.
func renderExcludedAssignments(cols []ColumnMetadata) string {
	assigns := make([]string, len(cols))
	for i, c := range cols {
		assigns[i] = QuoteIdentifier(c.ColumnName) + " = " +
			QuoteIdentifier("excluded") + "." + QuoteIdentifier(c.ColumnName)
	}
	return renderList(assigns)
}
