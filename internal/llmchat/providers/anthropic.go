package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmagent"
	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
	"github.com/tonyredondo/debugger-mcp-server/internal/obslog"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	Redact       func(string) string
	Logger       *obslog.Logger
}

// AnthropicProvider adapts the Anthropic Messages API to
// llmagent.CompletionFunc (spec.md §4.5): system is a top-level string, tool
// results are user-role tool_result blocks, assistant tool calls are
// tool_use blocks, and reasoning is enabled through a thinking budget.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	redact       func(string) string
	retries      retryPolicy
	logger       *obslog.Logger
}

// thinkingBudgets maps the three reasoning-effort tiers to token budgets
// (spec.md §4.5).
var thinkingBudgets = map[llmchat.ReasoningEffort]int64{
	llmchat.ReasoningLow:    512,
	llmchat.ReasoningMedium: 1024,
	llmchat.ReasoningHigh:   2048,
}

// NewAnthropicProvider fails fast when no API key is configured.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &llmagent.ConfigError{Field: "apiKey", Message: "Anthropic API key not configured"}
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	opts = append(opts, option.WithRequestTimeout(timeout))

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		redact:       cfg.Redact,
		retries: retryPolicy{
			maxRetries: orDefaultInt(cfg.MaxRetries, 3),
			retryDelay: orDefaultDuration(cfg.RetryDelay, time.Second),
		},
		logger: cfg.Logger,
	}, nil
}

// Complete implements llmagent.CompletionFunc.
func (p *AnthropicProvider) Complete(ctx context.Context, req llmchat.ChatCompletionRequest) (llmchat.ChatCompletionResult, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages, system, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "tool", Cause: err}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "tool", Cause: err}
		}
		params.Tools = tools
	}
	if req.ReasoningEffort != llmchat.ReasoningUnset {
		if budget, ok := thinkingBudgets[req.ReasoningEffort]; ok {
			// Clamp below max_tokens-1 per spec.md §4.5.
			if cap := int64(maxTokens) - 1; budget > cap {
				budget = cap
			}
			if budget > 0 {
				params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
			}
		}
	}

	var msg *anthropic.Message
	err = withRetry(ctx, p.retries, func(err error) bool {
		return isRetryableErrMsg(err.Error())
	}, func(ctx context.Context, attemptNum int) error {
		m, callErr := p.client.Messages.New(ctx, params)
		if callErr != nil {
			return callErr
		}
		msg = m
		return nil
	}, func(attemptNum int, retryErr error) {
		if p.logger != nil {
			p.logger.Warn(ctx, "provider retry", "provider", "anthropic", "model", model, "attempt", attemptNum, "error", retryErr)
		}
	})
	if err != nil {
		return llmchat.ChatCompletionResult{}, classifyAnthropicError(model, p.redact, err)
	}

	return fromAnthropicMessage(msg), nil
}

// toAnthropicMessages splits the system message (Anthropic carries it as a
// top-level string, not a message) and converts the rest, mapping tool
// results to user-role tool_result blocks and assistant tool calls to
// tool_use blocks (spec.md §4.5). An assistant message that carries
// Structured content blocks (the result of a prior Anthropic turn) is
// rebuilt from those blocks rather than from Text/ToolCalls alone, so
// provider-specific blocks round-trip instead of being silently dropped on
// the next turn (spec.md §9).
func toAnthropicMessages(messages []llmchat.ChatMessage) ([]anthropic.MessageParam, string, error) {
	var system strings.Builder
	var out []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case llmchat.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Text)
		case llmchat.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		case llmchat.RoleAssistant:
			blocks, err := anthropicAssistantBlocks(m)
			if err != nil {
				return nil, "", err
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case llmchat.RoleTool:
			if m.ToolCallID == "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
				continue
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		}
	}
	return out, system.String(), nil
}

// anthropicAssistantBlocks rebuilds an assistant turn's content blocks,
// preferring the Structured blocks captured on a prior Anthropic decode
// over Text/ToolCalls alone so nothing the model actually sent is lost in
// the round trip. thinking and redacted_thinking — the two provider-specific
// shapes this SDK's param union still has a constructor for — are rebuilt
// from their raw captured fields; any other unrecognized block type has no
// param to target and is dropped.
func anthropicAssistantBlocks(m llmchat.ChatMessage) ([]anthropic.ContentBlockParamUnion, error) {
	if m.Structured.Kind != llmchat.ContentBlocks || len(m.Structured.Blocks) == 0 {
		var blocks []anthropic.ContentBlockParamUnion
		if m.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Text))
		}
		for _, tc := range m.ToolCalls {
			input, err := decodeToolInput(tc.ArgumentsJSON)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		return blocks, nil
	}

	var blocks []anthropic.ContentBlockParamUnion
	for _, b := range m.Structured.Blocks {
		switch b.Type {
		case llmchat.BlockText:
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))
		case llmchat.BlockToolUse:
			input, err := decodeToolInput(b.ToolArgumentsJSON)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
		case llmchat.BlockUnknown:
			if block, ok := anthropicReconstructUnknown(b.Unknown); ok {
				blocks = append(blocks, block)
			}
		}
	}
	return blocks, nil
}

func decodeToolInput(argumentsJSON string) (map[string]any, error) {
	if argumentsJSON == "" {
		return nil, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(argumentsJSON), &input); err != nil {
		return nil, err
	}
	return input, nil
}

// anthropicReconstructUnknown rebuilds a thinking or redacted_thinking block
// from its raw captured fields. Every other block type this model doesn't
// recognize has no matching constructor in ContentBlockParamUnion and is
// left out rather than guessed at.
func anthropicReconstructUnknown(raw map[string]json.RawMessage) (anthropic.ContentBlockParamUnion, bool) {
	var blockType string
	if t, ok := raw["type"]; ok {
		_ = json.Unmarshal(t, &blockType)
	}
	switch blockType {
	case "thinking":
		var thinking, signature string
		if v, ok := raw["thinking"]; ok {
			_ = json.Unmarshal(v, &thinking)
		}
		if v, ok := raw["signature"]; ok {
			_ = json.Unmarshal(v, &signature)
		}
		return anthropic.NewThinkingBlock(signature, thinking), true
	case "redacted_thinking":
		var data string
		if v, ok := raw["data"]; ok {
			_ = json.Unmarshal(v, &data)
		}
		return anthropic.NewRedactedThinkingBlock(data), true
	default:
		return anthropic.ContentBlockParamUnion{}, false
	}
}

func toAnthropicTools(tools []llmchat.ChatTool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.ParameterSchema) > 0 {
			if err := json.Unmarshal(t.ParameterSchema, &schema); err != nil {
				return nil, err
			}
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, toolParam)
	}
	return out, nil
}

// fromAnthropicMessage flattens the response's content blocks into the
// provider-agnostic result, preserving every block verbatim in Structured
// so a subsequent turn can echo it back (spec.md §4.5/§9).
func fromAnthropicMessage(msg *anthropic.Message) llmchat.ChatCompletionResult {
	result := llmchat.ChatCompletionResult{Model: string(msg.Model)}

	var text strings.Builder
	var blocks []llmchat.ContentBlock
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(block.Text)
			blocks = append(blocks, llmchat.ContentBlock{Type: llmchat.BlockText, Text: block.Text})
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, llmchat.ChatToolCall{
				ID:            block.ID,
				Name:          block.Name,
				ArgumentsJSON: string(block.Input),
			})
			blocks = append(blocks, llmchat.ContentBlock{
				Type:              llmchat.BlockToolUse,
				ToolUseID:         block.ID,
				ToolName:          block.Name,
				ToolArgumentsJSON: string(block.Input),
			})
		default:
			raw, _ := json.Marshal(block)
			var unknown map[string]json.RawMessage
			_ = json.Unmarshal(raw, &unknown)
			blocks = append(blocks, llmchat.ContentBlock{Type: llmchat.BlockUnknown, Unknown: unknown})
		}
	}
	result.Text = text.String()
	result.Structured = llmchat.BlocksContent(blocks)
	return result
}

func classifyAnthropicError(model string, redact func(string) string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llmagent.ProviderError{
			Provider: "anthropic",
			Model:    model,
			Status:   apiErr.StatusCode,
			Message:  capErrorBody(redact, apiErr.Message),
			Reason:   llmagent.ClassifyStatusCode(apiErr.StatusCode),
			Cause:    err,
		}
	}
	return &llmagent.TransportError{Provider: "anthropic", Model: model, Cause: err}
}
