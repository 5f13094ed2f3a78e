// Package mcpsampling translates an MCP-style sampling/createMessage request
// into the internal llmchat.ChatCompletionRequest shape and back, per
// spec.md §4.6. It is grounded on the teacher's internal/mcp sampling types
// (SamplingRequest/SamplingResponse/MessageContent), generalized to carry
// tools, tool_choice, and reasoning effort, which the teacher's simpler
// single-server-proxy shape does not need.
package mcpsampling

import "encoding/json"

// Message is one entry of a sampling request's messages array. Content may
// be a bare string, an array of content blocks, or a single object — all
// three shapes are accepted per spec.md §4.6.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ToolDef mirrors llmchat.ChatTool on the wire.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Request is the incoming sampling/createMessage payload (spec.md §6's MCP
// sampling interface).
type Request struct {
	SystemPrompt    string          `json:"systemPrompt,omitempty"`
	Messages        []Message       `json:"messages"`
	Tools           []ToolDef       `json:"tools,omitempty"`
	ToolChoice      json.RawMessage `json:"toolChoice,omitempty"`
	MaxTokens       int             `json:"maxTokens,omitempty"`
	ReasoningEffort json.RawMessage `json:"reasoningEffort,omitempty"`
}

// ContentBlock is one element of a Response's content array.
type ContentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// Response is the outgoing sampling/createMessage result.
type Response struct {
	Role    string         `json:"role"`
	Model   string         `json:"model"`
	Content []ContentBlock `json:"content"`
}

// reasoningWrapper parses the two accepted shapes of the reasoningEffort
// field: a bare string, or {"reasoning":{"effort":"..."}} (spec.md §4.6).
type reasoningWrapper struct {
	Reasoning struct {
		Effort string `json:"effort"`
	} `json:"reasoning"`
}

func parseReasoningEffort(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var w reasoningWrapper
	if err := json.Unmarshal(raw, &w); err == nil {
		return w.Reasoning.Effort
	}
	return ""
}

// parseToolChoice parses toolChoice as either a bare string mode or an
// object {"type":"...","function":{"name":"..."}}, returning its type as the
// mode and the function name.
func parseToolChoice(raw json.RawMessage) (mode, name string) {
	if len(raw) == 0 {
		return "", ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, ""
	}
	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Type, obj.Function.Name
	}
	return "", ""
}
