package logger

import (
	"context"
	"testing"
)

func TestUpdateScopeAccumulates(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-1")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	ctx = WithHandler(ctx, "storefront.add")
	ctx = WithHandler(ctx, "")

	if got := RIDFrom(ctx); got != "rid-1" {
		t.Fatalf("rid = %q", got)
	}
	if UpdateIDFrom(ctx) != 42 || UserIDFrom(ctx) != 7 || ChatIDFrom(ctx) != 9 {
		t.Fatalf("meta = %d/%d/%d", UpdateIDFrom(ctx), UserIDFrom(ctx), ChatIDFrom(ctx))
	}
	if got := HandlerFrom(ctx); got != "storefront.add" {
		t.Fatalf("handler = %q", got)
	}

	child := WithRID(ctx, "rid-2")
	if RIDFrom(ctx) != "rid-1" || RIDFrom(child) != "rid-2" || UserIDFrom(child) != 7 {
		t.Fatal("child scope leaked into parent")
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	if RIDFrom(ctx) != "" || HandlerFrom(ctx) != "" || UserIDFrom(ctx) != 0 {
		t.Fatal("background context should carry no scope")
	}
	if FromContext(ctx) != L {
		t.Fatal("FromContext should fall back to L")
	}
	if WithLogger(ctx, nil) != ctx {
		t.Fatal("nil logger should keep ctx")
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"plain":                "plain",
		"a\x00b\x7fc":          "abc",
		"zero\u200bwidth":      "zerowidth",
		"line\nnext\ttab\rret": "line\nnext\ttabret",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		BuildRID(123, 456, 789): "3f.co.lx",
		" 1:2:3 ":               "1.2.3",
		"1:2":                   "1:2",
		"1:2:3:4":               "1:2:3:4",
		"1:x:3":                 "1:x:3",
		"":                      "",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Fatalf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}
