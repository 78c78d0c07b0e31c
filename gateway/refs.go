package gateway

// TableReference is a quoted, optionally aliased handle on a table, used
// for building predicate fragments outside the batched operations.
type TableReference struct {
	Schema string
	Table  string
	Alias  string
}

// WithAlias returns a copy of r carrying the given alias.
func (r TableReference) WithAlias(alias string) TableReference {
	r.Alias = alias
	return r
}

func (r TableReference) String() string {
	qualified := QuoteIdentifier(r.Schema) + "." + QuoteIdentifier(r.Table)
	if r.Alias != "" {
		return qualified + " AS " + QuoteIdentifier(r.Alias)
	}
	return qualified
}

// Column returns a reference to one of r's columns. The result is only
// meaningful in the context of r.
func (r TableReference) Column(name string) ColumnReference {
	return ColumnReference{Table: r, Name: name}
}

type ColumnReference struct {
	Table TableReference
	Name  string
}

func (c ColumnReference) String() string {
	if c.Table.Alias != "" {
		return QuoteIdentifier(c.Table.Alias) + "." + QuoteIdentifier(c.Name)
	}
	return c.Table.String() + "." + QuoteIdentifier(c.Name)
}

// Eq renders an equality predicate between two column references.
func (c ColumnReference) Eq(other ColumnReference) string {
	return c.String() + " = " + other.String()
}
