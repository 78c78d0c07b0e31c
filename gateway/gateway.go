package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/pgway/utils"
	"github.com/rs/zerolog"
)

type (
	// Handle is the statement execution capability the gateway runs on.
	// Query returns result rows with values indexed by column position;
	// Exec returns the affected row count. Implementations must accept
	// array-valued bind parameters, since every batched statement passes
	// one array per column.
	Handle interface {
		Query(ctx context.Context, sql string, args ...any) ([][]any, error)
		Exec(ctx context.Context, sql string, args ...any) (int64, error)
	}

	// Key is one ordered key tuple. Its arity must equal the number of
	// columns selected by the field filter it is passed with.
	Key []any

	// Gateway provides batched row access for one table. Each operation
	// issues exactly one statement regardless of batch size, by binding
	// per-column arrays and unnesting them inside the database. A Gateway
	// holds no mutable state and is safe for concurrent use.
	Gateway[R any] struct {
		meta    TableMetadata
		fromRow func([]any) (R, error)
		toRow   func(R) []any
		newline string
	}
)

// New builds a gateway over meta. fromRow constructs a record from a result
// row ordered like meta.Columns; toRow deconstructs a record back into that
// order.
func New[R any](meta TableMetadata, fromRow func([]any) (R, error), toRow func(R) []any) (*Gateway[R], error) {
	if err := meta.validateMeta(); err != nil {
		return nil, err
	}
	return &Gateway[R]{meta: meta, fromRow: fromRow, toRow: toRow, newline: "\n"}, nil
}

// Newline returns a copy of g using sep as the statement line separator.
// Formatting only, the generated SQL is equivalent for any separator.
func (g *Gateway[R]) Newline(sep string) *Gateway[R] {
	g2 := *g
	g2.newline = sep
	return &g2
}

// Meta returns the shared, read-only table metadata.
func (g *Gateway[R]) Meta() TableMetadata { return g.meta }

// GetBy looks up at most one row per key, matching on the columns selected
// by the `by` field filter. The result has one slot per key, in input
// order; keys without a match yield nil. If a key matches more than one
// table row, which record is returned for it is unspecified.
func (g *Gateway[R]) GetBy(ctx context.Context, h Handle, by []string, keys ...Key) ([]*R, error) {
	matches, err := g.matchColumns(by)
	if err != nil {
		return nil, err
	}
	args, err := keyArgs(matches, keys)
	if err != nil {
		return nil, err
	}

	mcols := matchedCols(matches)
	kcss := renderSelectionSet(mcols)
	tacss := renderAliasedSelectionSet("__t", g.meta.Columns)
	kacss := renderAliasedSelectionSet("__k", mcols)

	sql := strings.Join([]string{
		"WITH __k AS (" + renderUnnestedSelection(mcols) + ")",
		"SELECT DISTINCT ON (" + kacss + ") " + tacss,
		"FROM __k JOIN " + g.meta.target() + " AS __t USING (" + kcss + ")",
	}, g.newline)

	g.logOp(ctx, "get", len(keys))
	rows, err := h.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*R, len(rows))
	for _, row := range rows {
		rec, err := g.fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("error in fromRow: %w", err)
		}
		byKey[keyFingerprint(valuesAt(row, matches))] = &rec
	}

	out := make([]*R, len(keys))
	for i, k := range keys {
		out[i] = byKey[keyFingerprint(k)]
	}
	return out, nil
}

// FindBy looks up every row matching each key. The result has one slice
// per key, in input order; keys without a match yield an empty slice.
func (g *Gateway[R]) FindBy(ctx context.Context, h Handle, by []string, keys ...Key) ([][]R, error) {
	matches, err := g.matchColumns(by)
	if err != nil {
		return nil, err
	}
	args, err := keyArgs(matches, keys)
	if err != nil {
		return nil, err
	}

	mcols := matchedCols(matches)
	kcss := renderSelectionSet(mcols)
	tacss := renderAliasedSelectionSet("__t", g.meta.Columns)

	sql := strings.Join([]string{
		"WITH __k AS (" + renderUnnestedSelection(mcols) + ")",
		"SELECT " + tacss,
		"FROM __k LEFT JOIN " + g.meta.target() + " AS __t USING (" + kcss + ")",
	}, g.newline)

	g.logOp(ctx, "find", len(keys))
	rows, err := h.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]R, len(keys))
	for _, row := range rows {
		key := valuesAt(row, matches)
		if allNil(key) {
			// left join miss: there is no real row behind it
			continue
		}
		rec, err := g.fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("error in fromRow: %w", err)
		}
		fp := keyFingerprint(key)
		byKey[fp] = append(byKey[fp], rec)
	}

	out := make([][]R, len(keys))
	for i, k := range keys {
		if objs, ok := byKey[keyFingerprint(k)]; ok {
			out[i] = objs
		} else {
			out[i] = []R{}
		}
	}
	return out, nil
}

// Insert inserts the given records in one statement. Constraint violations
// surface unmodified from the handle.
func (g *Gateway[R]) Insert(ctx context.Context, h Handle, records ...R) error {
	args, err := g.recordArgs(records)
	if err != nil {
		return err
	}

	sql := strings.Join([]string{
		"WITH __v AS (" + renderUnnestedSelection(g.meta.Columns) + ")",
		"INSERT INTO " + g.meta.target(),
		"SELECT * FROM __v",
	}, g.newline)

	g.logOp(ctx, "insert", len(records))
	_, err = h.Exec(ctx, sql, args...)
	return err
}

// Save upserts the given records: insert, or on primary key conflict update
// the non-key columns from the incoming row. The update is restricted to
// rows where at least one non-key column actually differs, so an unchanged
// record does not produce a visible write. Requires a primary key.
func (g *Gateway[R]) Save(ctx context.Context, h Handle, records ...R) error {
	keyMatches, err := g.primaryKeyColumns()
	if err != nil {
		return err
	}
	setters := g.setterColumns()
	args, err := g.recordArgs(records)
	if err != nil {
		return err
	}

	kcss := renderSelectionSet(matchedCols(keyMatches))
	lines := []string{
		"WITH __v AS (" + renderUnnestedSelection(g.meta.Columns) + ")",
		"INSERT INTO " + g.meta.target() + " AS __t",
		"SELECT * FROM __v",
	}
	if len(setters) == 0 {
		lines = append(lines, "ON CONFLICT ("+kcss+") DO NOTHING")
	} else {
		lines = append(lines,
			"ON CONFLICT ("+kcss+") DO UPDATE SET "+renderExcludedAssignments(setters),
			"WHERE ("+renderAliasedSelectionSet("__t", setters)+") IS DISTINCT FROM ("+renderAliasedSelectionSet("excluded", setters)+")",
		)
	}
	sql := strings.Join(lines, g.newline)

	g.logOp(ctx, "save", len(records))
	_, err = h.Exec(ctx, sql, args...)
	return err
}

// Delete deletes the rows identified by the given records' primary keys.
// Requires a primary key.
func (g *Gateway[R]) Delete(ctx context.Context, h Handle, records ...R) error {
	keyMatches, err := g.primaryKeyColumns()
	if err != nil {
		return err
	}
	rows, err := g.recordRows(records)
	if err != nil {
		return err
	}

	args := make([]any, len(keyMatches))
	for j, m := range keyMatches {
		colVals := make([]any, len(rows))
		for i, row := range rows {
			colVals[i] = row[m.pos]
		}
		args[j] = colVals
	}

	kcols := matchedCols(keyMatches)
	sql := strings.Join([]string{
		"WITH __k AS (" + renderUnnestedSelection(kcols) + ")",
		"DELETE FROM " + g.meta.target() + " AS __t",
		"USING __k WHERE " + renderMatchPredicate("__t", "__k", kcols),
	}, g.newline)

	g.logOp(ctx, "delete", len(records))
	_, err = h.Exec(ctx, sql, args...)
	return err
}

// matchColumn pairs a column with its index in the full column list, which
// is also its position in every result row.
type matchColumn struct {
	col ColumnMetadata
	pos int
}

func matchedCols(matches []matchColumn) []ColumnMetadata {
	cols := make([]ColumnMetadata, len(matches))
	for i, m := range matches {
		cols[i] = m.col
	}
	return cols
}

// matchColumns resolves a field filter to columns, in column order.
func (g *Gateway[R]) matchColumns(by []string) ([]matchColumn, error) {
	if len(by) == 0 {
		return nil, validationErrorf("empty field filter for %s.%s", g.meta.Schema, g.meta.Table)
	}
	for _, f := range by {
		if g.meta.columnByField(f) == nil {
			return nil, validationErrorf("unknown field %q in filter for %s.%s", f, g.meta.Schema, g.meta.Table)
		}
	}
	var matches []matchColumn
	for i, c := range g.meta.Columns {
		if utils.ContainsString(by, c.FieldName) {
			matches = append(matches, matchColumn{col: c, pos: i})
		}
	}
	return matches, nil
}

// primaryKeyColumns resolves the primary key fields to columns, failing
// with a ConfigError when the table has none.
func (g *Gateway[R]) primaryKeyColumns() ([]matchColumn, error) {
	if len(g.meta.PrimaryKey) == 0 {
		return nil, configErrorf("table %s.%s has no primary key", g.meta.Schema, g.meta.Table)
	}
	var matches []matchColumn
	for i, c := range g.meta.Columns {
		if utils.ContainsString(g.meta.PrimaryKey, c.FieldName) {
			matches = append(matches, matchColumn{col: c, pos: i})
		}
	}
	return matches, nil
}

func (g *Gateway[R]) setterColumns() []ColumnMetadata {
	var setters []ColumnMetadata
	for _, c := range g.meta.Columns {
		if !utils.ContainsString(g.meta.PrimaryKey, c.FieldName) {
			setters = append(setters, c)
		}
	}
	return setters
}

// keyArgs transposes the key tuples into one array argument per matched
// column, in column order.
func keyArgs(matches []matchColumn, keys []Key) ([]any, error) {
	if len(keys) == 0 {
		return nil, validationErrorf("at least one key is required")
	}
	for i, k := range keys {
		if len(k) != len(matches) {
			return nil, validationErrorf("key %d has %d values, want %d", i, len(k), len(matches))
		}
	}
	args := make([]any, len(matches))
	for j := range matches {
		colVals := make([]any, len(keys))
		for i, k := range keys {
			colVals[i] = k[j]
		}
		args[j] = colVals
	}
	return args, nil
}

func (g *Gateway[R]) recordRows(records []R) ([][]any, error) {
	if len(records) == 0 {
		return nil, validationErrorf("at least one record is required")
	}
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := g.toRow(rec)
		if len(row) != len(g.meta.Columns) {
			return nil, validationErrorf("record %d has %d values, want %d", i, len(row), len(g.meta.Columns))
		}
		rows[i] = row
	}
	return rows, nil
}

// recordArgs transposes full records into one array argument per column.
func (g *Gateway[R]) recordArgs(records []R) ([]any, error) {
	rows, err := g.recordRows(records)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(g.meta.Columns))
	for j := range g.meta.Columns {
		colVals := make([]any, len(rows))
		for i, row := range rows {
			colVals[i] = row[j]
		}
		args[j] = colVals
	}
	return args, nil
}

func valuesAt(row []any, matches []matchColumn) []any {
	vals := make([]any, len(matches))
	for i, m := range matches {
		vals[i] = row[m.pos]
	}
	return vals
}

func allNil(vals []any) bool {
	for _, v := range vals {
		if v != nil {
			return false
		}
	}
	return true
}

// keyFingerprint builds the map key used to reassociate result rows with
// input keys. Values are rendered with fmt.Sprint and length-prefixed.
// Integer width differences (int vs int64) collapse on purpose: pgx
// returns whatever width the column has, not the width the caller passed.
func keyFingerprint(vals []any) string {
	var b strings.Builder
	for _, v := range vals {
		if v == nil {
			b.WriteString("~;")
			continue
		}
		s := fmt.Sprint(v)
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
		b.WriteByte(';')
	}
	return b.String()
}

func (g *Gateway[R]) logOp(ctx context.Context, op string, batch int) {
	zerolog.Ctx(ctx).Debug().
		Str("table", g.meta.Schema+"."+g.meta.Table).
		Str("op", op).
		Int("batch", batch).
		Msg("running gateway statement")
}
