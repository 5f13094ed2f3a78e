package llmagent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
)

// CheckpointKind enumerates the four snapshot kinds of spec.md §4.3.
type CheckpointKind string

const (
	CheckpointCarryForward    CheckpointKind = "carry_forward"
	CheckpointLoopBreak       CheckpointKind = "loop_break"
	CheckpointBaselineRequired CheckpointKind = "baseline_required"
	CheckpointIterationLimit  CheckpointKind = "iteration_limit"
)

// PromptKind classifies the current prompt for checkpoint annotation.
type PromptKind string

const (
	PromptConclusion  PromptKind = "conclusion"
	PromptInteractive PromptKind = "interactive"
)

// ReportSnapshot mirrors the last known report identity (spec.md §3).
type ReportSnapshot struct {
	DumpID      string `json:"dumpId,omitempty"`
	GeneratedAt string `json:"generatedAt,omitempty"`
}

// CheckpointPhase reports baseline completeness for the synthesized snapshot.
type CheckpointPhase struct {
	BaselineComplete bool     `json:"baselineComplete"`
	MissingBaseline  []string `json:"missingBaseline,omitempty"`
}

// EvidenceIndexEntry is a compact row in the checkpoint's evidence index.
type EvidenceIndexEntry struct {
	ID      string   `json:"id"`
	Tool    string   `json:"tool"`
	Tags    []string `json:"tags,omitempty"`
	Preview string   `json:"preview"`
	Error   bool     `json:"error"`
	Seen    int      `json:"seen"`
}

// NextStep is a suggested follow-up tool call.
type NextStep struct {
	Tool     string          `json:"tool"`
	ArgsJSON json.RawMessage `json:"argsJson,omitempty"`
}

// Checkpoint is the machine-readable snapshot described in spec.md §4.3.
type Checkpoint struct {
	Version           int                    `json:"version"`
	Kind              CheckpointKind         `json:"kind"`
	Iteration         int                    `json:"iteration"`
	ToolCallsExecuted int                    `json:"toolCallsExecuted"`
	TotalNewEvidence  *int                   `json:"totalNewEvidence,omitempty"`
	PromptKind        PromptKind             `json:"promptKind"`
	ReportSnapshot    ReportSnapshot         `json:"reportSnapshot"`
	Phase             CheckpointPhase        `json:"phase"`
	BaselineEvidence  map[string]string      `json:"baselineEvidence,omitempty"`
	EvidenceIndex     []EvidenceIndexEntry   `json:"evidenceIndex,omitempty"`
	DoNotRepeat       []string               `json:"doNotRepeat,omitempty"`
	NextSteps         []NextStep             `json:"nextSteps,omitempty"`
	Facts             []string               `json:"facts,omitempty"`
}

const maxEvidenceIndexEntries = 25

// SynthesizeCheckpoint builds a Checkpoint snapshot from the current ledger
// and loop state, per spec.md §4.3.
func SynthesizeCheckpoint(kind CheckpointKind, iteration, toolCallsExecuted int, totalNewEvidence *int, promptKind PromptKind, snapshot ReportSnapshot, l *Ledger) Checkpoint {
	entries := l.Entries()

	missing := MissingBaseline(l)
	missingTags := make([]string, 0, len(missing))
	for _, m := range missing {
		missingTags = append(missingTags, m.Tag)
	}

	baselineEvidence := map[string]string{}
	for _, item := range Baseline {
		if e, ok := l.TryGetLatestByTag(item.Tag); ok && !e.ToolWasError {
			baselineEvidence[item.Tag] = e.EvidenceID
		}
	}
	if len(baselineEvidence) == 0 {
		baselineEvidence = nil
	}

	start := 0
	if len(entries) > maxEvidenceIndexEntries {
		start = len(entries) - maxEvidenceIndexEntries
	}
	idx := make([]EvidenceIndexEntry, 0, len(entries)-start)
	for _, e := range entries[start:] {
		idx = append(idx, EvidenceIndexEntry{
			ID:      e.EvidenceID,
			Tool:    e.ToolName,
			Tags:    e.Tags,
			Preview: e.ToolResultPreview,
			Error:   e.ToolWasError,
			Seen:    e.SeenCount,
		})
	}

	var doNotRepeat []string
	for _, e := range entries {
		if e.ToolWasError {
			doNotRepeat = append(doNotRepeat, e.ToolKey)
		}
	}

	facts := checkpointFacts(doNotRepeat, missing)

	cp := Checkpoint{
		Version:           1,
		Kind:              kind,
		Iteration:         iteration,
		ToolCallsExecuted: toolCallsExecuted,
		TotalNewEvidence:  totalNewEvidence,
		PromptKind:        promptKind,
		ReportSnapshot:    snapshot,
		Phase: CheckpointPhase{
			BaselineComplete: len(missingTags) == 0,
			MissingBaseline:  missingTags,
		},
		BaselineEvidence: baselineEvidence,
		EvidenceIndex:    idx,
		DoNotRepeat:      doNotRepeat,
		Facts:            facts,
	}

	if step := selectNextStep(entries, promptKind, missing); step != nil {
		cp.NextSteps = []NextStep{*step}
	}

	return cp
}

// checkpointFacts renders doNotRepeat and the missing baseline items as the
// short directive sentences of spec.md §4.3's facts[]: one per failed tool
// key telling the model not to repeat it, one per missing baseline item
// telling it which call still needs to happen.
func checkpointFacts(doNotRepeat []string, missing []BaselineItem) []string {
	var facts []string
	for _, key := range doNotRepeat {
		facts = append(facts, fmt.Sprintf("Do not repeat the tool call keyed %q; it previously failed.", key))
	}
	for _, item := range missing {
		facts = append(facts, fmt.Sprintf("Baseline item %q is still missing; call %s to obtain it.", item.Tag, item.ToolName))
	}
	return facts
}

// selectNextStep implements the priority-ordered selector of spec.md §4.3.
func selectNextStep(entries []EvidenceEntry, promptKind PromptKind, missing []BaselineItem) *NextStep {
	var latest *EvidenceEntry
	if len(entries) > 0 {
		latest = &entries[len(entries)-1]
	}

	// 1. latest is a report_get error with "Try:" hints.
	if latest != nil && strings.EqualFold(latest.ToolName, "report_get") && latest.ToolWasError {
		if hint, ok := extractFirstTryHint(latest.ToolResultPreview); ok {
			return &NextStep{Tool: "report_get", ArgsJSON: json.RawMessage(mustMarshalPathArg(hint))}
		}
	}

	// 2. invalid_cursor -> retry without cursor.
	if latest != nil && strings.Contains(latest.ToolResultPreview, "invalid_cursor") {
		path := extractStringField(latest.ArgumentsJSON, "path")
		return &NextStep{Tool: "report_get", ArgsJSON: json.RawMessage(mustMarshalPathArg(path))}
	}

	// 3. "Invalid array index" -> retry with limit=10.
	if latest != nil && strings.Contains(latest.ToolResultPreview, "Invalid array index") {
		path := extractStringField(latest.ArgumentsJSON, "path")
		return &NextStep{Tool: "report_get", ArgsJSON: json.RawMessage(mustMarshalPathLimitArg(path, 10))}
	}

	// 4. an ".items" segment cannot be resolved -> strip it, limit=20.
	if latest != nil && strings.Contains(latest.ToolResultPreview, "items") && latest.ToolWasError {
		path := extractStringField(latest.ArgumentsJSON, "path")
		if stripped, ok := stripItemsSegment(path); ok {
			return &NextStep{Tool: "report_get", ArgsJSON: json.RawMessage(mustMarshalPathLimitArg(stripped, 20))}
		}
	}

	// 5. conclusion-seeking and baseline missing -> first missing baseline call.
	if promptKind == PromptConclusion && len(missing) > 0 {
		return &NextStep{Tool: missing[0].ToolName, ArgsJSON: json.RawMessage(missing[0].ArgumentsJSON)}
	}

	// 6. default.
	return &NextStep{Tool: "report_index", ArgsJSON: json.RawMessage(`{}`)}
}

func extractFirstTryHint(preview string) (string, bool) {
	idx := strings.Index(preview, "Try:")
	if idx < 0 {
		return "", false
	}
	rest := preview[idx+len("Try:"):]
	end := strings.IndexAny(rest, "\n")
	if end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

func stripItemsSegment(path string) (string, bool) {
	const suffix = ".items"
	if strings.HasSuffix(path, suffix) {
		return strings.TrimSuffix(path, suffix), true
	}
	return "", false
}

func mustMarshalPathArg(path string) []byte {
	b, _ := json.Marshal(struct {
		Path string `json:"path"`
	}{Path: path})
	return b
}

func mustMarshalPathLimitArg(path string, limit int) []byte {
	b, _ := json.Marshal(struct {
		Path  string `json:"path"`
		Limit int    `json:"limit"`
	}{Path: path, Limit: limit})
	return b
}

// PrunePolicy applies the loop-break message pruning of spec.md §4.3: keep
// the first system message, the first user message starting with "CLI
// runtime context", inject a fresh system checkpoint message, then append
// the last 12 non-system messages.
func PrunePolicy(messages []llmchat.ChatMessage, checkpointJSON string) []llmchat.ChatMessage {
	var kept []llmchat.ChatMessage

	for _, m := range messages {
		if m.Role == llmchat.RoleSystem {
			kept = append(kept, m)
			break
		}
	}
	for _, m := range messages {
		if m.Role == llmchat.RoleUser && strings.HasPrefix(m.Text, "CLI runtime context") {
			kept = append(kept, m)
			break
		}
	}

	kept = append(kept, llmchat.ChatMessage{
		Role: llmchat.RoleSystem,
		Text: "INTERNAL CHECKPOINT (machine-readable JSON, authoritative):\n" + checkpointJSON,
	})

	var nonSystem []llmchat.ChatMessage
	for _, m := range messages {
		if m.Role != llmchat.RoleSystem {
			nonSystem = append(nonSystem, m)
		}
	}
	const tailCount = 12
	start := 0
	if len(nonSystem) > tailCount {
		start = len(nonSystem) - tailCount
	}
	kept = append(kept, nonSystem[start:]...)
	return kept
}
