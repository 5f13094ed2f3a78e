package llmagent

import (
	"strings"
	"testing"
)

func TestToolKeyExecNormalizesWhitespaceAndCase(t *testing.T) {
	a := ToolKey("exec", `{"command":"  !CLRStack   -all "}`)
	b := ToolKey("exec", `{"command":"!clrstack -all"}`)
	if a != b {
		t.Fatalf("expected equal keys, got %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "exec:") {
		t.Fatalf("expected exec: prefix, got %q", a)
	}
}

func TestToolKeyAnalyzeUsesKindOnly(t *testing.T) {
	a := ToolKey("analyze", `{"kind":"CPU"}`)
	b := ToolKey("analyze", `{"kind":"cpu"}`)
	if a != b || a != "analyze:cpu" {
		t.Fatalf("expected analyze:cpu, got %q and %q", a, b)
	}
}

func TestToolKeyGenericUsesCanonicalJSON(t *testing.T) {
	a := ToolKey("report_get", `{"path":"analysis.summary","limit":10}`)
	b := ToolKey("report_get", `{  "limit":10,  "path": "analysis.summary" }`)
	if a != b {
		t.Fatalf("expected canonicalized keys to match, got %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "report_get:") {
		t.Fatalf("expected report_get: prefix, got %q", a)
	}
}

func TestToolKeyHashDeterministic(t *testing.T) {
	k := ToolKey("exec", `{"command":"!clrstack"}`)
	if ToolKeyHash(k) != ToolKeyHash(k) {
		t.Fatalf("hash must be deterministic")
	}
}

func TestTruncateToolResultRespectsCap(t *testing.T) {
	long := strings.Repeat("x", 10000)
	out := TruncateToolResult(long, 500)
	if len([]rune(out)) > 500 {
		t.Fatalf("expected at most 500 runes, got %d", len([]rune(out)))
	}
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected truncation marker in output")
	}
}

func TestTruncateToolResultBelow128HeadOnly(t *testing.T) {
	long := strings.Repeat("y", 1000)
	out := TruncateToolResult(long, 100)
	if out != strings.Repeat("y", 100) {
		t.Fatalf("expected head-only prefix of length 100, got len=%d", len(out))
	}
}

func TestTruncateToolResultNoopUnderCap(t *testing.T) {
	short := "hello world"
	if out := TruncateToolResult(short, 400); out != short {
		t.Fatalf("expected unchanged string, got %q", out)
	}
}
