package llmagent

import (
	"bytes"
	"strings"
	"testing"
)

func TestTraceStoreWritesHeaderThenEvents(t *testing.T) {
	var buf bytes.Buffer
	store := NewTraceStore(&buf, "run-1", "baseline-prefetch", nil)

	store.Record(TraceEvent{Type: TraceRunStarted, Iteration: 0})
	store.Record(TraceEvent{Type: TraceIterationStarted, Iteration: 1})
	store.Record(TraceEvent{Type: TraceToolExecuted, Iteration: 1, ToolName: "exec"})

	reader, err := NewTraceReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewTraceReader: %v", err)
	}
	if reader.Header().RunID != "run-1" {
		t.Fatalf("expected run-1, got %s", reader.Header().RunID)
	}
	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Sequence != 1 || events[2].Sequence != 3 {
		t.Fatalf("expected strictly increasing sequence, got %+v", events)
	}
	if events[2].ToolName != "exec" {
		t.Fatalf("expected tool name exec, got %s", events[2].ToolName)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, bytes.ErrTooLarge
}

func TestTraceStoreWriteFailureIsSwallowed(t *testing.T) {
	store := NewTraceStore(failingWriter{}, "run-2", "", nil)
	// Must not panic or otherwise propagate the underlying write error.
	store.Record(TraceEvent{Type: TraceRunStarted})
}

func TestTraceStoreRedactorAppliedBeforeWrite(t *testing.T) {
	var buf bytes.Buffer
	redactor := func(e *TraceEvent) {
		e.ToolName = "[REDACTED]"
	}
	store := NewTraceStore(&buf, "run-3", "", redactor)
	store.Record(TraceEvent{Type: TraceToolExecuted, ToolName: "exec with secret=sk-abc"})

	if strings.Contains(buf.String(), "sk-abc") {
		t.Fatalf("expected redactor to scrub tool name before writing, got %s", buf.String())
	}
}
