package llmagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
	"github.com/tonyredondo/debugger-mcp-server/internal/obslog"
	"github.com/tonyredondo/debugger-mcp-server/internal/toolschema"
)

// DefaultMaxIterations and DefaultMaxToolResultChars are the defaults named
// in spec.md §4.1.
const (
	DefaultMaxIterations      = 20
	DefaultMaxToolResultChars = 20000
	maxLoopBreaks             = 3
)

// CompletionFunc calls the configured provider with the full message list.
type CompletionFunc func(ctx context.Context, req llmchat.ChatCompletionRequest) (llmchat.ChatCompletionResult, error)

// ToolExecutor runs a single tool call out of process against the remote
// debugger service (§6). err is reserved for exceptional conditions (context
// cancellation); ordinary tool-contract failures are reported via wasError,
// never via err (spec.md §7).
type ToolExecutor func(ctx context.Context, call llmchat.ChatToolCall) (output string, wasError bool, err error)

// TranscriptRedactor scrubs a tool result before it is recorded in the
// ledger or shown to the model (spec.md §4.8).
type TranscriptRedactor func(string) string

// RunnerConfig holds the tunables named in spec.md §4.1.
type RunnerConfig struct {
	MaxIterations      int
	MaxToolResultChars int
	Redact             TranscriptRedactor
	Trace              *TraceStore
	Logger             *obslog.Logger
}

// normalized fills zero-valued fields with their spec.md defaults.
func (c RunnerConfig) normalized() RunnerConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxToolResultChars <= 0 {
		c.MaxToolResultChars = DefaultMaxToolResultChars
	}
	if c.Redact == nil {
		c.Redact = func(s string) string { return s }
	}
	return c
}

// RunResult is the Runner's output contract (spec.md §4.1). RunID is a
// fresh identifier minted per call to Run, suitable for trace/log
// correlation (see internal/obslog.WithRun).
type RunResult struct {
	RunID             string
	FinalText         string
	Iterations        int
	ToolCallsExecuted int
}

// Runner drives the iterative completion/tool-execution/checkpoint cycle
// described in spec.md §4.1, adapted from the teacher's AgenticLoop with one
// deliberate redesign: tool calls within an iteration execute strictly
// serially, in request order (spec.md §5), never through a concurrent
// executor.
type Runner struct {
	Completion CompletionFunc
	ExecuteTool ToolExecutor
	Tools      []llmchat.ChatTool
	Model      string
	Config     RunnerConfig
}

// Run executes the agent loop for one prompt against session, starting from
// seedMessages (system prompt, runtime context, history) plus the freshly
// appended user prompt already included in seedMessages.
func (r *Runner) Run(ctx context.Context, seedMessages []llmchat.ChatMessage, userPrompt string, session *SessionState) (RunResult, error) {
	if r.Completion == nil {
		return RunResult{}, ErrNoProvider
	}
	cfg := r.Config.normalized()
	runID := uuid.NewString()
	ctx = obslog.WithRun(ctx, runID)

	messages := append([]llmchat.ChatMessage(nil), seedMessages...)
	promptKind := PromptInteractive
	if IsConclusionSeeking(userPrompt) {
		promptKind = PromptConclusion
	}

	noProgressRounds := 0
	loopBreaks := 0
	toolCallsExecuted := 0
	attemptedBaselinePrefetch := false

	if cfg.Trace != nil {
		cfg.Trace.Record(TraceEvent{Type: TraceRunStarted})
	}
	cfg.Logger.Info(ctx, "agent run started", "prompt_kind", promptKind)

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return RunResult{}, ErrCancelled
		default:
		}

		if cfg.Trace != nil {
			cfg.Trace.Record(TraceEvent{Type: TraceIterationStarted, Iteration: iteration})
		}
		cfg.Logger.Debug(ctx, "agent loop iteration started", "iteration", iteration)

		result, err := r.Completion(ctx, llmchat.ChatCompletionRequest{
			Model:    r.Model,
			Messages: messages,
			Tools:    r.Tools,
		})
		if err != nil {
			return RunResult{}, &LoopError{Phase: PhaseCompletion, Iteration: iteration, Cause: err}
		}

		if !result.HasToolCalls() {
			if promptKind == PromptConclusion && !BaselineComplete(session.Ledger) && !attemptedBaselinePrefetch {
				attemptedBaselinePrefetch = true
				n, err := r.prefetchBaseline(ctx, session, cfg)
				toolCallsExecuted += n
				if err != nil {
					return RunResult{}, err
				}
				// Re-offer the same prompt next iteration; the assistant's
				// no-tool-calls answer is not committed to history.
				continue
			}
			if promptKind == PromptConclusion && !BaselineComplete(session.Ledger) {
				missing := MissingBaseline(session.Ledger)
				return RunResult{
					RunID:             runID,
					FinalText:         baselineIncompleteMessage(missing),
					Iterations:        iteration,
					ToolCallsExecuted: toolCallsExecuted,
				}, nil
			}
			return RunResult{
				RunID:             runID,
				FinalText:         result.Text,
				Iterations:        iteration,
				ToolCallsExecuted: toolCallsExecuted,
			}, nil
		}

		messages = append(messages, llmchat.ChatMessage{
			Role:       llmchat.RoleAssistant,
			Text:       result.Text,
			ToolCalls:  result.ToolCalls,
			Structured: result.Structured,
			Provider:   result.Provider,
		})

		newEvidenceThisIteration := 0
		for _, call := range result.ToolCalls {
			decision := session.ApprovalGate.Resolve(ApprovalRequest{ToolName: call.Name, ArgumentsJSON: call.ArgumentsJSON})
			switch decision {
			case CancelRun:
				return RunResult{}, ErrRunAborted
			case DenyOnce:
				messages = append(messages, toolDeniedMessage(call))
				continue
			}

			isNew, err := r.executeAndRecord(ctx, call, session, cfg, &messages, &toolCallsExecuted)
			if err != nil {
				return RunResult{}, &LoopError{Phase: PhaseToolExecution, Iteration: iteration, Cause: err}
			}
			if isNew {
				newEvidenceThisIteration++
			}
		}

		if newEvidenceThisIteration == 0 {
			noProgressRounds++
		} else {
			noProgressRounds = 0
		}

		if noProgressRounds >= 2 {
			loopBreaks++
			snapshot := ReportSnapshot{DumpID: session.LastReportDumpID, GeneratedAt: session.LastReportGeneratedAt}
			cp := SynthesizeCheckpoint(CheckpointLoopBreak, iteration, toolCallsExecuted, intPtr(newEvidenceThisIteration), promptKind, snapshot, session.Ledger)
			cpJSON, _ := json.Marshal(cp)
			session.LastCheckpointJSON = string(cpJSON)

			if cfg.Trace != nil {
				cfg.Trace.Record(TraceEvent{Type: TraceCheckpointWritten, Iteration: iteration, Detail: cpJSON})
			}
			cfg.Logger.Info(ctx, "checkpoint synthesized", "kind", string(cp.Kind), "iteration", iteration)

			if loopBreaks >= maxLoopBreaks {
				return RunResult{
					RunID:             runID,
					FinalText:         pleaseGuideMeMessage(cp),
					Iterations:        iteration,
					ToolCallsExecuted: toolCallsExecuted,
				}, nil
			}

			messages = PrunePolicy(messages, string(cpJSON))
			noProgressRounds = 0
		}

		if iteration == cfg.MaxIterations {
			snapshot := ReportSnapshot{DumpID: session.LastReportDumpID, GeneratedAt: session.LastReportGeneratedAt}
			cp := SynthesizeCheckpoint(CheckpointIterationLimit, iteration, toolCallsExecuted, nil, promptKind, snapshot, session.Ledger)
			cpJSON, _ := json.Marshal(cp)
			session.LastCheckpointJSON = string(cpJSON)
			cfg.Logger.Info(ctx, "checkpoint synthesized", "kind", string(cp.Kind), "iteration", iteration)
			return RunResult{
				RunID:             runID,
				FinalText:         iterationLimitMessage(cp),
				Iterations:        iteration,
				ToolCallsExecuted: toolCallsExecuted,
			}, &LoopError{Phase: PhaseContinue, Iteration: iteration, Cause: ErrMaxIterations}
		}
	}

	return RunResult{}, ErrMaxIterations
}

// executeAndRecord runs one tool call, redacts and truncates its output,
// records it in the ledger, appends the tool message, and updates the
// session's lastReportDumpId/lastReportGeneratedAt when the call answers a
// metadata baseline request. It returns whether the ledger gained a new
// entry (vs. a seenCount bump on a duplicate).
func (r *Runner) executeAndRecord(ctx context.Context, call llmchat.ChatToolCall, session *SessionState, cfg RunnerConfig, messages *[]llmchat.ChatMessage, toolCallsExecuted *int) (bool, error) {
	if schema := r.toolSchemaFor(call.Name); len(schema) > 0 {
		if verr := toolschema.Validate(call.Name, schema, []byte(call.ArgumentsJSON)); verr != nil {
			return r.recordContractError(call, verr.Error(), session, cfg, messages, toolCallsExecuted), nil
		}
	}

	rawOutput, wasError, err := r.ExecuteTool(ctx, call)
	if err != nil {
		return false, err
	}
	*toolCallsExecuted++

	redacted := cfg.Redact(rawOutput)
	truncated := TruncateToolResult(redacted, cfg.MaxToolResultChars)

	toolKey := ToolKey(call.Name, call.ArgumentsJSON)
	tags := TagsForCall(call.Name, call.ArgumentsJSON)
	_, isNew := session.Ledger.AddOrUpdate(call.Name, call.ArgumentsJSON, toolKey, []byte(redacted), truncated, tags, wasError, nowUTC())

	if !wasError {
		updateReportSnapshot(session, call, redacted)
	}

	if cfg.Trace != nil {
		cfg.Trace.Record(TraceEvent{Type: TraceToolExecuted, ToolName: call.Name})
	}
	cfg.Logger.Debug(ctx, "tool executed", "tool", call.Name, "was_error", wasError, "new_evidence", isNew)

	*messages = append(*messages, llmchat.ChatMessage{
		Role:       llmchat.RoleTool,
		Text:       truncated,
		ToolCallID: call.ID,
	})
	return isNew, nil
}

// toolSchemaFor returns the declared JSON Schema for a tool by name, or nil
// if the tool was offered without one (in which case no contract check runs).
func (r *Runner) toolSchemaFor(name string) json.RawMessage {
	for _, t := range r.Tools {
		if t.Name == name {
			return t.ParameterSchema
		}
	}
	return nil
}

// recordContractError handles a tool call whose arguments fail schema
// validation (spec.md §7's "Schema/contract errors for arguments"): the tool
// is never invoked, and the dotted-path error message is recorded and
// surfaced exactly like a failed tool execution.
func (r *Runner) recordContractError(call llmchat.ChatToolCall, message string, session *SessionState, cfg RunnerConfig, messages *[]llmchat.ChatMessage, toolCallsExecuted *int) bool {
	*toolCallsExecuted++
	truncated := TruncateToolResult(message, cfg.MaxToolResultChars)
	toolKey := ToolKey(call.Name, call.ArgumentsJSON)
	_, isNew := session.Ledger.AddOrUpdate(call.Name, call.ArgumentsJSON, toolKey, []byte(message), truncated, TagsForCall(call.Name, call.ArgumentsJSON), true, nowUTC())

	if cfg.Trace != nil {
		cfg.Trace.Record(TraceEvent{Type: TraceToolExecuted, ToolName: call.Name})
	}

	*messages = append(*messages, llmchat.ChatMessage{
		Role:       llmchat.RoleTool,
		Text:       truncated,
		ToolCallID: call.ID,
	})
	return isNew
}

// prefetchBaseline executes the missing baseline plan automatically, under a
// scoped approval override (spec.md §4.1 step 2, §4.9).
func (r *Runner) prefetchBaseline(ctx context.Context, session *SessionState, cfg RunnerConfig) (int, error) {
	release := session.ApprovalGate.ScopedOverride()
	defer release()

	executed := 0
	for _, item := range MissingBaseline(session.Ledger) {
		call := llmchat.ChatToolCall{ID: "baseline-" + item.Tag, Name: item.ToolName, ArgumentsJSON: item.ArgumentsJSON}
		rawOutput, wasError, err := r.ExecuteTool(ctx, call)
		if err != nil {
			return executed, err
		}
		executed++
		redacted := cfg.Redact(rawOutput)
		truncated := TruncateToolResult(redacted, cfg.MaxToolResultChars)
		toolKey := ToolKey(call.Name, call.ArgumentsJSON)
		session.Ledger.AddOrUpdate(call.Name, call.ArgumentsJSON, toolKey, []byte(redacted), truncated, []string{item.Tag}, wasError, nowUTC())
		cfg.Logger.Debug(ctx, "tool executed", "tool", call.Name, "was_error", wasError, "baseline_prefetch", true)
		if !wasError {
			updateReportSnapshot(session, call, redacted)
		}
	}
	return executed, nil
}

func updateReportSnapshot(session *SessionState, call llmchat.ChatToolCall, output string) {
	if call.Name != "report_get" {
		return
	}
	if extractStringField(call.ArgumentsJSON, "path") != "metadata" {
		return
	}
	var meta struct {
		DumpID      string `json:"dumpId"`
		GeneratedAt string `json:"generatedAt"`
	}
	if err := json.Unmarshal([]byte(output), &meta); err != nil {
		return
	}
	if meta.DumpID != "" {
		session.LastReportDumpID = meta.DumpID
	}
	if meta.GeneratedAt != "" {
		session.LastReportGeneratedAt = meta.GeneratedAt
	}
}

func toolDeniedMessage(call llmchat.ChatToolCall) llmchat.ChatMessage {
	return llmchat.ChatMessage{
		Role:       llmchat.RoleTool,
		Text:       "ERROR: tool call denied by approval policy",
		ToolCallID: call.ID,
	}
}

func baselineIncompleteMessage(missing []BaselineItem) string {
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, m.Tag)
	}
	return fmt.Sprintf("Baseline is incomplete and the model is not requesting tools. Missing: %v", names)
}

func pleaseGuideMeMessage(cp Checkpoint) string {
	hint := "report_index()"
	if len(cp.NextSteps) > 0 {
		hint = cp.NextSteps[0].Tool
	}
	return fmt.Sprintf("(LLM agent stopped after repeated no-progress iterations) I was not able to make further progress automatically. Please guide me — a reasonable next step would be %s.", hint)
}

func iterationLimitMessage(cp Checkpoint) string {
	hint := "report_index()"
	if len(cp.NextSteps) > 0 {
		hint = cp.NextSteps[0].Tool
	}
	return fmt.Sprintf("(LLM agent stopped after %d steps) Iteration limit reached before a final answer was produced. Suggested next step: %s.", cp.Iteration, hint)
}

func intPtr(n int) *int { return &n }
