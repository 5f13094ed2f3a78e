package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestUTF8SafePrefixNeverSplitsRune(t *testing.T) {
	s := strings.Repeat("héllo wörld 世界 ", 50)
	for n := 0; n < len(s); n++ {
		prefix := UTF8SafePrefix(s, n)
		if !utf8.ValidString(prefix) {
			t.Fatalf("prefix at n=%d is not valid utf8: %q", n, prefix)
		}
		if len(prefix) > n {
			t.Fatalf("prefix at n=%d exceeds budget: len=%d", n, len(prefix))
		}
	}
}

func TestUTF8SafePrefixNoTruncationNeeded(t *testing.T) {
	s := "short"
	if got := UTF8SafePrefix(s, 100); got != s {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestByteCapMarkerRespectsBudget(t *testing.T) {
	s := strings.Repeat("a", 1000)
	out := ByteCapMarker(s, 100, "...cut")
	if len(out) > 100 {
		t.Fatalf("expected len<=100, got %d", len(out))
	}
	if !strings.HasSuffix(out, "...cut") {
		t.Fatalf("expected suffix marker, got %q", out)
	}
}

func TestCanonicalJSONIdempotent(t *testing.T) {
	cases := []string{
		`{"b":1,"a":2}`,
		`{"z": {"y":1, "x":2}, "a":[3,2,1]}`,
		`[1,2,3]`,
		`"just a string"`,
		`42`,
		`not json`,
	}
	for _, c := range cases {
		once := CanonicalJSON(c)
		twice := CanonicalJSON(once)
		if once != twice {
			t.Fatalf("canonicalize not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}

func TestCanonicalJSONKeyReorderWhitespaceStable(t *testing.T) {
	a := CanonicalJSON(`{"path":"analysis.summary","limit":10}`)
	b := CanonicalJSON(`{  "limit" : 10 , "path" : "analysis.summary"  }`)
	if a != b {
		t.Fatalf("expected identical canonical forms, got %q vs %q", a, b)
	}
}
