package pg

import (
	"testing"
)

func TestEncodeArrayLiteral(t *testing.T) {
	got, err := encodeArrayLiteral([]any{int64(1), 2, nil})
	if err != nil {
		t.Fatal(err)
	}
	if got != "{1,2,NULL}" {
		t.Fatalf("got %s", got)
	}
}

func TestEncodeArrayLiteralQuoting(t *testing.T) {
	got, err := encodeArrayLiteral([]any{`he"y`, "a,b", ""})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"he\"y","a,b",""}` {
		t.Fatalf("got %s", got)
	}
}

func TestEncodeArrayLiteralBytes(t *testing.T) {
	got, err := encodeArrayLiteral([]any{[]byte{0xde, 0xad}})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"\\xdead"}` {
		t.Fatalf("got %s", got)
	}
}

func TestEncodeArrayLiteralBool(t *testing.T) {
	got, err := encodeArrayLiteral([]any{true, false})
	if err != nil {
		t.Fatal(err)
	}
	if got != "{true,false}" {
		t.Fatalf("got %s", got)
	}
}

func TestEncodeArgsPassthrough(t *testing.T) {
	out, err := encodeArgs([]any{"scalar", int64(7), []any{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "scalar" || out[1] != int64(7) {
		t.Fatalf("scalars must pass through untouched, got %#v", out)
	}
	if out[2] != `{a,b}` {
		t.Fatalf("got %v", out[2])
	}
}
