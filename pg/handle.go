package pg

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// Querier is the subset of pgx this package drives. It is satisfied by
// *pgx.Conn, pgx.Tx, *pgxpool.Pool and *pgxpool.Conn.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Handle adapts a pgx Querier to the gateway's statement execution
// capability. Column-array arguments (the []any slices the gateway binds,
// one per column) are encoded as array literals before dispatch; the
// rendered SQL casts every placeholder with ::T[], so the text form is
// valid for any element type. Scalar arguments pass through untouched.
type Handle struct {
	Q Querier
}

func NewHandle(q Querier) Handle { return Handle{Q: q} }

func (h Handle) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	encoded, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	rows, err := h.Q.Query(ctx, sql, encoded...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("error in rows.Values: %w", err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func (h Handle) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	encoded, err := encodeArgs(args)
	if err != nil {
		return 0, err
	}
	tag, err := h.Q.Exec(ctx, sql, encoded...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func encodeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		col, ok := a.([]any)
		if !ok {
			out[i] = a
			continue
		}
		lit, err := encodeArrayLiteral(col)
		if err != nil {
			return nil, fmt.Errorf("error encoding argument %d: %w", i+1, err)
		}
		out[i] = lit
	}
	return out, nil
}

// encodeArrayLiteral renders vals as a postgres array literal. Element
// quoting and escaping is delegated to pgtype's text array encoder.
func encodeArrayLiteral(vals []any) (string, error) {
	elems := make([]*string, len(vals))
	for i, v := range vals {
		s, err := formatElement(v)
		if err != nil {
			return "", err
		}
		elems[i] = s
	}
	var arr pgtype.TextArray
	if err := arr.Set(elems); err != nil {
		return "", fmt.Errorf("error in TextArray.Set: %w", err)
	}
	buf, err := arr.EncodeText(nil, nil)
	if err != nil {
		return "", fmt.Errorf("error in TextArray.EncodeText: %w", err)
	}
	return string(buf), nil
}

func formatElement(v any) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &t, nil
	case []byte:
		s := `\x` + hex.EncodeToString(t)
		return &s, nil
	case time.Time:
		s := t.Format(time.RFC3339Nano)
		return &s, nil
	case bool:
		s := strconv.FormatBool(t)
		return &s, nil
	case fmt.Stringer:
		s := t.String()
		return &s, nil
	default:
		s := fmt.Sprint(t)
		return &s, nil
	}
}
