package reportcache

import (
	"strings"
	"testing"
)

func TestComposeInjectionIncludesManifestFirst(t *testing.T) {
	out := ComposeInjection([]Attachment{
		{Title: "manifest", Body: `{"sections":["threads"]}`},
		{Title: "threads", Body: `[{"id":1}]`},
	}, 10000)

	if !strings.Contains(out, "manifest") || !strings.Contains(out, "threads") {
		t.Fatalf("expected both attachments present, got %q", out)
	}
	if strings.Index(out, "manifest") > strings.Index(out, "threads") {
		t.Fatalf("expected manifest to precede threads")
	}
	if !strings.HasPrefix(out, "Attached file (untrusted)") {
		t.Fatalf("expected untrusted-attachment directive prefix, got %q", out)
	}
}

func TestComposeInjectionDropsOverBudgetSections(t *testing.T) {
	big := strings.Repeat("x", 5000)
	out := ComposeInjection([]Attachment{
		{Title: "manifest", Body: "small"},
		{Title: "huge-section", Body: big},
		{Title: "summary", Body: "tail"},
	}, 200)

	if strings.Contains(out, big) {
		t.Fatalf("expected the oversized section to be dropped, not included whole")
	}
	if !strings.Contains(out, "small") {
		t.Fatalf("expected the manifest to still be present")
	}
}

func TestComposeInjectionTruncatesFinalSummary(t *testing.T) {
	big := strings.Repeat("y", 5000)
	out := ComposeInjection([]Attachment{
		{Title: "manifest", Body: "small"},
		{Title: "summary", Body: big},
	}, 400)

	if strings.Contains(out, big) {
		t.Fatalf("expected the summary to be truncated, not included whole")
	}
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected a truncation marker in output, got %q", out)
	}
}

func TestComposeInjectionEmptyInputs(t *testing.T) {
	if out := ComposeInjection(nil, 1000); out != "" {
		t.Fatalf("expected empty output for no attachments, got %q", out)
	}
	if out := ComposeInjection([]Attachment{{Title: "a", Body: "b"}}, 0); out != "" {
		t.Fatalf("expected empty output for zero budget, got %q", out)
	}
}
