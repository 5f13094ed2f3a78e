package mcpsampling

import (
	"encoding/json"
	"testing"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
)

func TestToChatRequestPlainStringContent(t *testing.T) {
	req := Request{
		SystemPrompt: "be terse",
		Messages: []Message{
			{Role: "user", Content: json.RawMessage(`"what is the root cause?"`)},
		},
		MaxTokens:       512,
		ReasoningEffort: json.RawMessage(`"high"`),
	}

	chatReq, _, err := ToChatRequest("claude-x", req)
	if err != nil {
		t.Fatalf("ToChatRequest: %v", err)
	}
	if len(chatReq.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(chatReq.Messages))
	}
	if chatReq.Messages[1].Text != "what is the root cause?" {
		t.Fatalf("unexpected user text: %q", chatReq.Messages[1].Text)
	}
	if chatReq.ReasoningEffort != llmchat.ReasoningHigh {
		t.Fatalf("expected high reasoning effort, got %q", chatReq.ReasoningEffort)
	}
}

func TestToChatRequestBlockArrayWithToolResult(t *testing.T) {
	content := json.RawMessage(`[{"type":"tool_result","id":"call_1","text":"ok"}]`)
	req := Request{Messages: []Message{{Role: "user", Content: content}}}

	chatReq, notes, err := ToChatRequest("m", req)
	if err != nil {
		t.Fatalf("ToChatRequest: %v", err)
	}
	if len(chatReq.Messages) != 1 || chatReq.Messages[0].Role != llmchat.RoleTool {
		t.Fatalf("expected a single tool message, got %+v", chatReq.Messages)
	}
	if chatReq.Messages[0].ToolCallID != "call_1" {
		t.Fatalf("expected tool call id call_1, got %q", chatReq.Messages[0].ToolCallID)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one progress note, got %d", len(notes))
	}
}

func TestToolChoiceParsing(t *testing.T) {
	req := Request{
		Messages:   []Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
		ToolChoice: json.RawMessage(`{"type":"tool","function":{"name":"exec"}}`),
	}
	chatReq, _, err := ToChatRequest("m", req)
	if err != nil {
		t.Fatalf("ToChatRequest: %v", err)
	}
	if chatReq.ToolChoice.Mode != llmchat.ToolChoiceNamed || chatReq.ToolChoice.Name != "exec" {
		t.Fatalf("expected named tool choice exec, got %+v", chatReq.ToolChoice)
	}
}

func TestFromChatResultEmitsToolUseBlocks(t *testing.T) {
	result := llmchat.ChatCompletionResult{
		Model: "m",
		Text:  "summary",
		ToolCalls: []llmchat.ChatToolCall{
			{ID: "1", Name: "report_index", ArgumentsJSON: "{}"},
		},
	}
	resp, notes := FromChatResult(result)
	if len(resp.Content) != 2 {
		t.Fatalf("expected text+tool_use blocks, got %d", len(resp.Content))
	}
	if resp.Content[1].Type != "tool_use" || resp.Content[1].Name != "report_index" {
		t.Fatalf("unexpected tool_use block: %+v", resp.Content[1])
	}
	if len(notes) != 1 {
		t.Fatalf("expected one progress note, got %d", len(notes))
	}
}

func TestFallbackExtractToolUse(t *testing.T) {
	text := `Here is my plan. {"type":"tool_use","id":"t1","name":"report_index","input":{}} Then I will decide.`
	cleaned, calls := FallbackExtractToolUse(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 extracted tool call, got %d", len(calls))
	}
	if calls[0].Name != "report_index" || calls[0].ID != "t1" {
		t.Fatalf("unexpected call: %+v", calls[0])
	}
	if cleaned == text {
		t.Fatalf("expected the tool_use object to be stripped from displayed text")
	}
}

func TestFallbackExtractToolUseIgnoresBracesInStrings(t *testing.T) {
	text := `{"type":"tool_use","id":"t1","name":"exec","input":{"command":"echo \"{not a block}\""}}`
	_, calls := FallbackExtractToolUse(text)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call despite braces inside a string literal, got %d", len(calls))
	}
	if calls[0].ArgumentsJSON == "" {
		t.Fatalf("expected non-empty arguments JSON")
	}
}

func TestFallbackExtractToolUseNoMatch(t *testing.T) {
	text := "just plain prose with no JSON at all"
	cleaned, calls := FallbackExtractToolUse(text)
	if calls != nil {
		t.Fatalf("expected no calls, got %d", len(calls))
	}
	if cleaned != text {
		t.Fatalf("expected text unchanged when nothing extracted")
	}
}
