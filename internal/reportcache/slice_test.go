package reportcache

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSliceKeepsSmallSectionsVerbatim(t *testing.T) {
	root := map[string]json.RawMessage{
		"threads": json.RawMessage(`[{"id":1}]`),
		"ignored": json.RawMessage(`"not a recognized section"`),
	}
	sections := Slice(root)
	if len(sections) != 1 {
		t.Fatalf("expected exactly 1 section, got %d", len(sections))
	}
	if sections[0].Pointer != "/threads" {
		t.Fatalf("unexpected pointer: %q", sections[0].Pointer)
	}
	if string(sections[0].Value) != `[{"id":1}]` {
		t.Fatalf("expected verbatim value, got %q", sections[0].Value)
	}
}

func TestSliceSplitsOversizedArray(t *testing.T) {
	big := strings.Repeat("x", maxSectionBytes+1000)
	raw, _ := json.Marshal([]string{big, big})
	root := map[string]json.RawMessage{"modules": raw}

	sections := Slice(root)
	if len(sections) < 3 {
		t.Fatalf("expected a manifest plus 2 child sections, got %d", len(sections))
	}
	if sections[0].Pointer != "/modules" {
		t.Fatalf("expected manifest section first, got %q", sections[0].Pointer)
	}
	var manifest map[string]any
	if err := json.Unmarshal(sections[0].Value, &manifest); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if manifest["splitContainer"] != true {
		t.Fatalf("expected splitContainer manifest marker")
	}
}

func TestSliceTruncatesOversizedPrimitive(t *testing.T) {
	big := strings.Repeat("y", maxSectionBytes+5000)
	raw, _ := json.Marshal(big)
	root := map[string]json.RawMessage{"signature": raw}

	sections := Slice(root)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	var placeholder map[string]any
	if err := json.Unmarshal(sections[0].Value, &placeholder); err != nil {
		t.Fatalf("placeholder not valid JSON: %v", err)
	}
	if placeholder["truncated"] != true {
		t.Fatalf("expected truncated placeholder marker")
	}
}

func TestSanitizeSectionIDEscapesAndCaps(t *testing.T) {
	id := SanitizeSectionID("/modules/0/name with spaces")
	if strings.Contains(id, " ") {
		t.Fatalf("expected spaces to be sanitized, got %q", id)
	}
	long := SanitizeSectionID("/" + strings.Repeat("a", 500))
	if len(long) > 120 {
		t.Fatalf("expected sanitized id capped at 120 bytes, got %d", len(long))
	}
}
