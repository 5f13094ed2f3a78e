package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmagent"
	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
	"github.com/tonyredondo/debugger-mcp-server/internal/obslog"
)

// OpenAIConfig configures an OpenAIProvider. APIKey and BaseURL are read once
// at construction time by the (out-of-scope) CLI layer's config loader, not
// scattered through this package (spec.md SPEC_FULL.md "Configuration").
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Redact     func(string) string
	Logger     *obslog.Logger
}

// OpenAIProvider adapts the OpenAI chat/completions wire format to
// llmagent.CompletionFunc (spec.md §4.5).
type OpenAIProvider struct {
	client  *openai.Client
	redact  func(string) string
	retries retryPolicy
	logger  *obslog.Logger
}

// NewOpenAIProvider fails fast with a *llmagent.ConfigError when no API key
// is configured (spec.md §7, "Configuration errors ... fail fast before any
// remote I/O").
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &llmagent.ConfigError{Field: "apiKey", Message: "OpenAI API key not configured"}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient.Timeout = cfg.Timeout
	} else {
		clientCfg.HTTPClient.Timeout = 120 * time.Second
	}

	p := &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		redact: cfg.Redact,
		retries: retryPolicy{
			maxRetries: orDefaultInt(cfg.MaxRetries, 3),
			retryDelay: orDefaultDuration(cfg.RetryDelay, time.Second),
		},
		logger: cfg.Logger,
	}
	return p, nil
}

// Complete implements llmagent.CompletionFunc.
func (p *OpenAIProvider) Complete(ctx context.Context, req llmchat.ChatCompletionRequest) (llmchat.ChatCompletionResult, error) {
	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "tool", Cause: err}
	}

	base := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		base.Tools = toOpenAITools(req.Tools)
	}
	if choice := toOpenAIToolChoice(req.ToolChoice); choice != nil {
		base.ToolChoice = choice
	}

	// Adaptive token-parameter retry (spec.md §4.5): every request starts on
	// max_tokens and switches to max_completion_tokens at most once, when the
	// server answers HTTP 400 calling max_tokens unsupported.
	useCompletionTokens := false
	switched := false

	var resp openai.ChatCompletionResponse
	err = withRetry(ctx, p.retries, func(err error) bool {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return isRetryableErrMsg(apiErr.Message) || isRetryableErrMsg(apiErr.Error())
		}
		return isRetryableErrMsg(err.Error())
	}, func(ctx context.Context, attemptNum int) error {
		chatReq := base
		applyTokenCap(&chatReq, req.MaxTokens, useCompletionTokens)

		r, callErr := p.client.CreateChatCompletion(ctx, chatReq)
		if callErr == nil {
			resp = r
			return nil
		}

		var apiErr *openai.APIError
		if !switched && errors.As(callErr, &apiErr) && apiErr.HTTPStatusCode == 400 {
			msg := strings.ToLower(apiErr.Message)
			if !useCompletionTokens && strings.Contains(msg, "max_tokens") && strings.Contains(msg, "unsupported") {
				useCompletionTokens = true
				switched = true
				chatReq = base
				applyTokenCap(&chatReq, req.MaxTokens, useCompletionTokens)
				r, callErr = p.client.CreateChatCompletion(ctx, chatReq)
				if callErr == nil {
					resp = r
					return nil
				}
			} else if useCompletionTokens && strings.Contains(msg, "max_completion_tokens") && strings.Contains(msg, "unsupported") {
				useCompletionTokens = false
				switched = true
				chatReq = base
				applyTokenCap(&chatReq, req.MaxTokens, useCompletionTokens)
				r, callErr = p.client.CreateChatCompletion(ctx, chatReq)
				if callErr == nil {
					resp = r
					return nil
				}
			}
		}
		return callErr
	}, func(attemptNum int, retryErr error) {
		if p.logger != nil {
			p.logger.Warn(ctx, "provider retry", "provider", "openai", "model", req.Model, "attempt", attemptNum, "error", retryErr)
		}
	})
	if err != nil {
		return llmchat.ChatCompletionResult{}, classifyOpenAIError("openai", req.Model, p.redact, err)
	}
	if len(resp.Choices) == 0 {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "provider", Cause: errors.New("openai: empty choices")}
	}

	return fromOpenAIChoice(resp), nil
}

func applyTokenCap(r *openai.ChatCompletionRequest, maxTokens int, useCompletionTokens bool) {
	r.MaxTokens = 0
	r.MaxCompletionTokens = 0
	if maxTokens <= 0 {
		return
	}
	if useCompletionTokens {
		r.MaxCompletionTokens = maxTokens
	} else {
		r.MaxTokens = maxTokens
	}
}

func toOpenAIToolChoice(tc llmchat.ToolChoice) any {
	switch tc.Mode {
	case llmchat.ToolChoiceAuto:
		return "auto"
	case llmchat.ToolChoiceNone:
		return "none"
	case llmchat.ToolChoiceRequired:
		return "required"
	case llmchat.ToolChoiceNamed:
		return openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: tc.Name}}
	default:
		return nil
	}
}

func toOpenAITools(tools []llmchat.ChatTool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema any
		if len(t.ParameterSchema) > 0 {
			_ = json.Unmarshal(t.ParameterSchema, &schema)
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

// toOpenAIMessages converts the provider-agnostic message list to OpenAI's
// wire format (spec.md §4.5): assistant tool_calls in their native field,
// one tool message per result keyed by tool_call_id. An assistant message's
// Provider bag is echoed back through the one field this wire format has a
// slot for (Refusal); go-openai's ChatCompletionMessage has no generic
// passthrough for anything else in Provider or for non-text/tool_use
// Structured blocks (spec.md §9).
func toOpenAIMessages(messages []llmchat.ChatMessage) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llmchat.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Text})
		case llmchat.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		case llmchat.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			if raw, ok := m.Provider["refusal"]; ok {
				_ = json.Unmarshal(raw, &msg.Refusal)
			}
			if len(m.ToolCalls) > 0 {
				msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					msg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: tc.ArgumentsJSON,
						},
					}
				}
			}
			out = append(out, msg)
		case llmchat.RoleTool:
			if m.ToolCallID == "" {
				// A tool message missing its call id is degraded to a user note
				// per spec.md §3's ChatMessage invariant.
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
				continue
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Text,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out, nil
}

func fromOpenAIChoice(resp openai.ChatCompletionResponse) llmchat.ChatCompletionResult {
	choice := resp.Choices[0]
	result := llmchat.ChatCompletionResult{
		Model: resp.Model,
		Text:  choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llmchat.ChatToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
	}
	if choice.Message.Refusal != "" {
		raw, _ := json.Marshal(choice.Message.Refusal)
		result.Provider = llmchat.ProviderFields{"refusal": raw}
	}
	return result
}

func classifyOpenAIError(provider, model string, redact func(string) string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body := capErrorBody(redact, apiErr.Message)
		return &llmagent.ProviderError{
			Provider:  provider,
			Model:     model,
			Status:    apiErr.HTTPStatusCode,
			Code:      stringifyCode(apiErr.Code),
			Message:   body,
			RequestID: "",
			Reason:    llmagent.ClassifyStatusCode(apiErr.HTTPStatusCode),
			Cause:     err,
		}
	}
	return &llmagent.TransportError{Provider: provider, Model: model, Cause: err}
}

func stringifyCode(code any) string {
	if code == nil {
		return ""
	}
	if s, ok := code.(string); ok {
		return s
	}
	b, _ := json.Marshal(code)
	return string(b)
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
