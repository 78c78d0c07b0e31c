package pg

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/hanpama/pgway/gateway"
	"github.com/hanpama/pgway/migrations"
	"github.com/hanpama/pgway/utils"
)

// The tests below run against a real database and are skipped unless
// PG_DSN is set. The schema comes from the embedded migrations.

type testAuthor struct {
	ID   string
	Name string
	Bio  *string
}

func testAuthorFromRow(row []any) (testAuthor, error) {
	a := testAuthor{}
	id, ok := row[0].(string)
	if !ok {
		return a, fmt.Errorf("unexpected id type %T", row[0])
	}
	name, ok := row[1].(string)
	if !ok {
		return a, fmt.Errorf("unexpected name type %T", row[1])
	}
	a.ID = id
	a.Name = name
	if row[2] != nil {
		bio, ok := row[2].(string)
		if !ok {
			return a, fmt.Errorf("unexpected bio type %T", row[2])
		}
		a.Bio = &bio
	}
	return a, nil
}

func testAuthorToRow(a testAuthor) []any {
	row := []any{a.ID, a.Name, nil}
	if a.Bio != nil {
		row[2] = *a.Bio
	}
	return row
}

func testAuthorGateway(t *testing.T) *gateway.Gateway[testAuthor] {
	t.Helper()
	g, err := gateway.New(gateway.TableMetadata{
		Schema: "pgway_test",
		Table:  "author",
		Columns: []gateway.ColumnMetadata{
			{ColumnName: "id", FieldName: "id", SQLType: "text"},
			{ColumnName: "name", FieldName: "name", SQLType: "text"},
			{ColumnName: "bio", FieldName: "bio", SQLType: "text"},
		},
		PrimaryKey: []string{"id"},
	}, testAuthorFromRow, testAuthorToRow)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func setupIntegration(t *testing.T) gateway.Handle {
	t.Helper()
	dsn := utils.GetEnvOrDefault("PG_DSN", "")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	if _, err := migrations.RunMigrations(dsn); err != nil {
		t.Fatal(err)
	}
	pool, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	return NewHandle(pool)
}

func TestIntegrationRoundTrip(t *testing.T) {
	h := setupIntegration(t)
	g := testAuthorGateway(t)
	ctx := context.Background()

	a1 := testAuthor{ID: uuid.NewString(), Name: "ada", Bio: utils.Ptr("wrote the first program")}
	a2 := testAuthor{ID: uuid.NewString(), Name: "grace"}
	if err := g.Insert(ctx, h, a1, a2); err != nil {
		t.Fatal(err)
	}

	got, err := g.GetBy(ctx, h, []string{"id"},
		gateway.Key{a2.ID}, gateway.Key{uuid.NewString()}, gateway.Key{a1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] == nil || got[0].Name != "grace" || got[0].Bio != nil {
		t.Fatalf("slot 0: %+v", got[0])
	}
	if got[1] != nil {
		t.Fatalf("slot 1 should be empty, got %+v", *got[1])
	}
	if got[2] == nil || got[2].Name != "ada" || got[2].Bio == nil || *got[2].Bio != *a1.Bio {
		t.Fatalf("slot 2: %+v", got[2])
	}
}

func TestIntegrationInsertConflict(t *testing.T) {
	h := setupIntegration(t)
	g := testAuthorGateway(t)
	ctx := context.Background()

	a := testAuthor{ID: uuid.NewString(), Name: "dup"}
	if err := g.Insert(ctx, h, a); err != nil {
		t.Fatal(err)
	}
	err := g.Insert(ctx, h, a)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation passthrough, got %v", err)
	}
}

func TestIntegrationUpsertIdempotence(t *testing.T) {
	h := setupIntegration(t)
	g := testAuthorGateway(t)
	ctx := context.Background()

	a := testAuthor{ID: uuid.NewString(), Name: "barbara"}
	if err := g.Save(ctx, h, a); err != nil {
		t.Fatal(err)
	}
	if err := g.Save(ctx, h, a); err != nil {
		t.Fatal(err)
	}

	found, err := g.FindBy(ctx, h, []string{"id"}, gateway.Key{a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(found[0]) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(found[0]))
	}

	a.Bio = utils.Ptr("invented structured programming arguments")
	if err := g.Save(ctx, h, a); err != nil {
		t.Fatal(err)
	}
	got, err := g.GetBy(ctx, h, []string{"id"}, gateway.Key{a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] == nil || got[0].Bio == nil || *got[0].Bio != *a.Bio {
		t.Fatalf("got %+v", got[0])
	}
}

func TestIntegrationDeleteCompleteness(t *testing.T) {
	h := setupIntegration(t)
	g := testAuthorGateway(t)
	ctx := context.Background()

	a1 := testAuthor{ID: uuid.NewString(), Name: "a1"}
	a2 := testAuthor{ID: uuid.NewString(), Name: "a2"}
	if err := g.Insert(ctx, h, a1, a2); err != nil {
		t.Fatal(err)
	}
	if err := g.Delete(ctx, h, a1, a2); err != nil {
		t.Fatal(err)
	}

	got, err := g.GetBy(ctx, h, []string{"id"}, gateway.Key{a1.ID}, gateway.Key{a2.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != nil || got[1] != nil {
		t.Fatalf("expected empty slots after delete, got %+v %+v", got[0], got[1])
	}
}

func TestIntegrationSavepointNesting(t *testing.T) {
	dsn := utils.GetEnvOrDefault("PG_DSN", "")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	if _, err := migrations.RunMigrations(dsn); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Release()

	g := testAuthorGateway(t)
	h := NewHandle(conn)
	s := NewSession(conn)
	boom := errors.New("boom")

	kept := testAuthor{ID: uuid.NewString(), Name: "kept"}
	dropped := testAuthor{ID: uuid.NewString(), Name: "dropped"}

	err = s.WithTx(ctx, func(ctx context.Context) error {
		if err := g.Insert(ctx, h, kept); err != nil {
			return err
		}
		// nested scope fails and rolls back to its savepoint only
		nestedErr := s.WithTx(ctx, func(ctx context.Context) error {
			if err := g.Insert(ctx, h, dropped); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(nestedErr, boom) {
			return fmt.Errorf("expected nested error, got: %w", nestedErr)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := g.GetBy(ctx, h, []string{"id"}, gateway.Key{kept.ID}, gateway.Key{dropped.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] == nil {
		t.Fatal("outer scope's insert must survive")
	}
	if got[1] != nil {
		t.Fatal("nested scope's insert must be rolled back")
	}
}
