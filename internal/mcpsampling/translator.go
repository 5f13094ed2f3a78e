package mcpsampling

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
)

// ToChatRequest translates an incoming sampling request into the internal
// chat request shape (spec.md §4.6).
func ToChatRequest(model string, req Request) (llmchat.ChatCompletionRequest, []ProgressNote, error) {
	out := llmchat.ChatCompletionRequest{
		Model:           model,
		MaxTokens:       req.MaxTokens,
		ReasoningEffort: llmchat.NormalizeReasoningEffort(parseReasoningEffort(req.ReasoningEffort)),
	}

	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, llmchat.ChatMessage{Role: llmchat.RoleSystem, Text: req.SystemPrompt})
	}

	var notes []ProgressNote
	for _, m := range req.Messages {
		msgs, note, err := messageToChatMessages(m)
		if err != nil {
			return llmchat.ChatCompletionRequest{}, nil, err
		}
		out.Messages = append(out.Messages, msgs...)
		if note != nil {
			notes = append(notes, *note)
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, llmchat.ChatTool{
			Name:            t.Name,
			Description:     t.Description,
			ParameterSchema: t.InputSchema,
		})
	}

	if mode, name := parseToolChoice(req.ToolChoice); mode != "" {
		out.ToolChoice = toChatToolChoice(mode, name)
	}

	return out, notes, nil
}

func toChatToolChoice(mode, name string) llmchat.ToolChoice {
	switch strings.ToLower(mode) {
	case "auto":
		return llmchat.ToolChoice{Mode: llmchat.ToolChoiceAuto}
	case "none":
		return llmchat.ToolChoice{Mode: llmchat.ToolChoiceNone}
	case "required", "any":
		return llmchat.ToolChoice{Mode: llmchat.ToolChoiceRequired}
	case "tool", "function":
		return llmchat.ToolChoice{Mode: llmchat.ToolChoiceNamed, Name: name}
	default:
		return llmchat.ToolChoice{}
	}
}

// messageToChatMessages converts one sampling message, which may expand into
// more than one ChatMessage: a user/assistant message with text and/or
// tool_use blocks, followed by one tool message per embedded tool_result
// block (spec.md §4.6).
func messageToChatMessages(m Message) ([]llmchat.ChatMessage, *ProgressNote, error) {
	text, blocks, err := extractContent(m.Content)
	if err != nil {
		return nil, nil, err
	}

	role := llmchat.RoleUser
	if strings.EqualFold(m.Role, "assistant") {
		role = llmchat.RoleAssistant
	}

	var out []llmchat.ChatMessage
	var toolCalls []llmchat.ChatToolCall
	var toolResultCount int

	for _, b := range blocks {
		switch b.Type {
		case "tool_use":
			toolCalls = append(toolCalls, llmchat.ChatToolCall{ID: b.ID, Name: b.Name, ArgumentsJSON: string(b.Input)})
		case "tool_result":
			out = append(out, llmchat.ChatMessage{Role: llmchat.RoleTool, Text: b.Text, ToolCallID: b.ID})
			toolResultCount++
		}
	}

	if text != "" || len(toolCalls) > 0 || len(out) == 0 {
		out = append([]llmchat.ChatMessage{{Role: role, Text: text, ToolCalls: toolCalls}}, out...)
	}

	var note *ProgressNote
	if toolResultCount > 0 {
		note = &ProgressNote{Summary: fmt.Sprintf("observed %d new tool result(s)", toolResultCount)}
	}
	return out, note, nil
}

// extractContent decodes a content field shaped as string, object, or array
// (spec.md §4.6) into display text plus any structured blocks found.
func extractContent(raw json.RawMessage) (text string, blocks []ContentBlock, err error) {
	if len(raw) == 0 {
		return "", nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		var sb strings.Builder
		for _, item := range arr {
			var b ContentBlock
			if err := json.Unmarshal(item, &b); err != nil {
				continue
			}
			var extra map[string]json.RawMessage
			_ = json.Unmarshal(item, &extra)
			b.Extra = extra
			blocks = append(blocks, b)
			if b.Type == "text" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(b.Text)
			}
		}
		return sb.String(), blocks, nil
	}

	var obj ContentBlock
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", nil, fmt.Errorf("mcpsampling: unrecognized content shape: %w", err)
	}
	return obj.Text, []ContentBlock{obj}, nil
}

// FromChatResult translates a completed chat result into the outgoing
// sampling response. If the provider returned no structured tool calls but
// its text contains embedded tool_use objects, FallbackExtractToolUse is
// applied first by the caller (spec.md §4.6's "Fallback extraction").
func FromChatResult(result llmchat.ChatCompletionResult) (Response, []ProgressNote) {
	resp := Response{Role: "assistant", Model: result.Model}

	var notes []ProgressNote
	if result.Text != "" {
		resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: result.Text})
	}
	for _, tc := range result.ToolCalls {
		resp.Content = append(resp.Content, ContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: json.RawMessage(tc.ArgumentsJSON),
		})
	}
	if len(result.ToolCalls) > 0 {
		notes = append(notes, ProgressNote{Summary: fmt.Sprintf("requesting %d new tool call(s)", len(result.ToolCalls))})
	}
	return resp, notes
}

// ProgressNote is a single compact progress-notification line (spec.md §4.6:
// "Emit progress notifications for both newly observed tool results ... and
// newly requested tool calls ..., each summarized as a single compact
// line").
type ProgressNote struct {
	Summary string
}
