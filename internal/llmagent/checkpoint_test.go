package llmagent

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
)

func TestSynthesizeCheckpointDefaultNextStepIsReportIndex(t *testing.T) {
	l := NewLedger()
	cp := SynthesizeCheckpoint(CheckpointLoopBreak, 3, 2, nil, PromptInteractive, ReportSnapshot{}, l)
	if len(cp.NextSteps) != 1 {
		t.Fatalf("expected exactly one next step, got %d", len(cp.NextSteps))
	}
	if cp.NextSteps[0].Tool != "report_index" {
		t.Fatalf("expected default report_index, got %s", cp.NextSteps[0].Tool)
	}
	if cp.Kind != CheckpointLoopBreak {
		t.Fatalf("expected loop_break kind")
	}
}

func TestSynthesizeCheckpointInvalidCursorRepair(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	args := `{"path":"analysis.threads.all","cursor":"abc"}`
	key := ToolKey("report_get", args)
	l.AddOrUpdate("report_get", args, key, []byte("err"), "invalid_cursor: abc is not valid", []string{TagReportGet}, true, now)

	cp := SynthesizeCheckpoint(CheckpointCarryForward, 1, 1, nil, PromptInteractive, ReportSnapshot{}, l)
	if len(cp.NextSteps) != 1 {
		t.Fatalf("expected one next step")
	}
	if cp.NextSteps[0].Tool != "report_get" {
		t.Fatalf("expected report_get retry, got %s", cp.NextSteps[0].Tool)
	}
	var got struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(cp.NextSteps[0].ArgsJSON, &got); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	if got.Path != "analysis.threads.all" {
		t.Fatalf("expected path without cursor, got %q", got.Path)
	}
}

func TestSynthesizeCheckpointConclusionSeekingMissingBaseline(t *testing.T) {
	l := NewLedger()
	cp := SynthesizeCheckpoint(CheckpointBaselineRequired, 1, 0, nil, PromptConclusion, ReportSnapshot{}, l)
	if len(cp.NextSteps) != 1 {
		t.Fatalf("expected one next step")
	}
	if cp.NextSteps[0].Tool != Baseline[0].ToolName {
		t.Fatalf("expected first baseline tool %s, got %s", Baseline[0].ToolName, cp.NextSteps[0].Tool)
	}
	if cp.Phase.BaselineComplete || len(cp.Phase.MissingBaseline) != len(Baseline) {
		t.Fatalf("expected all baseline tags missing")
	}
}

func TestSynthesizeCheckpointEvidenceIndexCapped(t *testing.T) {
	l := NewLedger()
	now := time.Now()
	for i := 0; i < 40; i++ {
		args := `{"n":` + string(rune('0'+i%10)) + `}`
		l.AddOrUpdate("exec", args, ToolKey("exec", args)+string(rune(i)), []byte{byte(i)}, "p", []string{TagExec}, false, now)
	}
	cp := SynthesizeCheckpoint(CheckpointCarryForward, 1, 40, nil, PromptInteractive, ReportSnapshot{}, l)
	if len(cp.EvidenceIndex) != maxEvidenceIndexEntries {
		t.Fatalf("expected evidence index capped at %d, got %d", maxEvidenceIndexEntries, len(cp.EvidenceIndex))
	}
}

func TestPrunePolicyShape(t *testing.T) {
	messages := []llmchat.ChatMessage{
		{Role: llmchat.RoleSystem, Text: "you are an agent"},
		{Role: llmchat.RoleUser, Text: "CLI runtime context: dump=foo.dmp"},
		{Role: llmchat.RoleUser, Text: "what happened?"},
	}
	for i := 0; i < 20; i++ {
		messages = append(messages, llmchat.ChatMessage{Role: llmchat.RoleAssistant, Text: "step"})
	}

	pruned := PrunePolicy(messages, `{"kind":"loop_break"}`)
	if pruned[0].Role != llmchat.RoleSystem || pruned[0].Text != "you are an agent" {
		t.Fatalf("expected first system message preserved, got %+v", pruned[0])
	}
	if !strings.HasPrefix(pruned[1].Text, "CLI runtime context") {
		t.Fatalf("expected CLI runtime context message second, got %+v", pruned[1])
	}
	if pruned[2].Role != llmchat.RoleSystem || !strings.Contains(pruned[2].Text, "INTERNAL CHECKPOINT") {
		t.Fatalf("expected injected checkpoint message third, got %+v", pruned[2])
	}
	tail := pruned[3:]
	if len(tail) != 12 {
		t.Fatalf("expected 12 trailing non-system messages, got %d", len(tail))
	}
}
