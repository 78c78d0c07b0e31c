package gateway

import "strings"

// QuoteIdentifier wraps name in double quotes, doubling any embedded quote.
// It must be applied to every schema/table/column/alias name interpolated
// into SQL text, and never to values, which are always bound as parameters.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RenderIdentifierList comma-joins quoted identifiers, order preserving.
func RenderIdentifierList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return renderList(quoted)
}

// RenderAliasedIdentifierList comma-joins alias-qualified quoted
// identifiers, used to select columns from an intermediate relation.
func RenderAliasedIdentifierList(alias string, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(alias) + "." + QuoteIdentifier(n)
	}
	return renderList(quoted)
}

func renderList(tokens []string) string {
	return strings.Join(tokens, ", ")
}

func renderSelectionSet(cols []ColumnMetadata) string {
	return RenderIdentifierList(columnNames(cols))
}

func renderAliasedSelectionSet(alias string, cols []ColumnMetadata) string {
	return RenderAliasedIdentifierList(alias, columnNames(cols))
}

func columnNames(cols []ColumnMetadata) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.ColumnName
	}
	return names
}
