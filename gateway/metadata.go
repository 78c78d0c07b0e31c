package gateway

import (
	"github.com/go-playground/validator/v10"
)

type (
	// ColumnMetadata describes one physical column. ColumnName is the SQL
	// identifier; FieldName is the logical name callers use in field
	// filters (the two may differ). SQLType must be valid as the element
	// type of an array cast (it gets "[]" appended in rendered statements).
	ColumnMetadata struct {
		ColumnName string `validate:"required"`
		FieldName  string `validate:"required"`
		SQLType    string `validate:"required"`
		IsArray    bool
	}

	// TableMetadata describes the target table. Column order is
	// significant: it fixes the positional argument order of every
	// rendered statement. PrimaryKey holds field names and may be empty,
	// which disables Save and Delete.
	TableMetadata struct {
		Schema     string           `validate:"required"`
		Table      string           `validate:"required"`
		Columns    []ColumnMetadata `validate:"min=1,dive"`
		PrimaryKey []string
	}
)

var validate = validator.New()

func (m TableMetadata) validateMeta() error {
	if err := validate.Struct(m); err != nil {
		return configErrorf("invalid metadata for table %s.%s: %s", m.Schema, m.Table, err)
	}
	for _, f := range m.PrimaryKey {
		if m.columnByField(f) == nil {
			return configErrorf("primary key field %q is not a column of %s.%s", f, m.Schema, m.Table)
		}
	}
	return nil
}

func (m TableMetadata) columnByField(field string) *ColumnMetadata {
	for i := range m.Columns {
		if m.Columns[i].FieldName == field {
			return &m.Columns[i]
		}
	}
	return nil
}

func (m TableMetadata) target() string {
	return QuoteIdentifier(m.Schema) + "." + QuoteIdentifier(m.Table)
}
