package reportcache

import "testing"

func TestIsStructuredReportAcceptsRecognizedShape(t *testing.T) {
	data := []byte(`{"metadata":{"dumpId":"abc123"},"threads":[{"id":1}],"extra":"ignored"}`)
	if !IsStructuredReport(data) {
		t.Fatalf("expected a valid structured report to be detected")
	}
}

func TestIsStructuredReportRejectsMissingDumpID(t *testing.T) {
	data := []byte(`{"metadata":{"dumpId":""},"threads":[]}`)
	if IsStructuredReport(data) {
		t.Fatalf("expected empty dumpId to be rejected")
	}
}

func TestIsStructuredReportRejectsNoRecognizedSection(t *testing.T) {
	data := []byte(`{"metadata":{"dumpId":"abc123"},"notes":"hello"}`)
	if IsStructuredReport(data) {
		t.Fatalf("expected a report with no recognized section to be rejected")
	}
}

func TestIsStructuredReportRejectsNonObject(t *testing.T) {
	if IsStructuredReport([]byte(`[1,2,3]`)) {
		t.Fatalf("expected a top-level array to be rejected")
	}
	if IsStructuredReport([]byte(`not json`)) {
		t.Fatalf("expected invalid JSON to be rejected")
	}
}

func TestIsStructuredReportToleratesTruncation(t *testing.T) {
	full := `{"metadata":{"dumpId":"abc123"},"threads":[{"id":1},{"id":2}],"modules":[{"name":"a"}]}`
	truncated := full[:len(full)-20]
	if !IsStructuredReport([]byte(truncated)) {
		t.Fatalf("expected detection to tolerate a mid-value truncated prefix")
	}
}
