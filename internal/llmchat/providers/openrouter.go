package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmagent"
	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
	"github.com/tonyredondo/debugger-mcp-server/internal/obslog"
	"github.com/tonyredondo/debugger-mcp-server/internal/textutil"
)

// defaultOpenRouterBaseURL is OpenRouter's OpenAI-compatible endpoint.
const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterConfig configures an OpenRouterProvider.
type OpenRouterConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Redact     func(string) string
	Logger     *obslog.Logger
}

// OpenRouterProvider adapts OpenRouter's OpenAI-compatible wire format, with
// the additional content-block tool-use fallback described in spec.md §4.5:
// some OpenRouter-backed models emit tool_use blocks inside the assistant
// message's content array instead of the top-level tool_calls field. Because
// go-openai's typed client assumes Content is always a string, this provider
// performs its own HTTP round trip and decodes content permissively.
type OpenRouterProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	redact     func(string) string
	retries    retryPolicy
	logger     *obslog.Logger
}

// NewOpenRouterProvider fails fast when no API key is configured.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &llmagent.ConfigError{Field: "apiKey", Message: "OpenRouter API key not configured"}
	}
	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &OpenRouterProvider{
		httpClient: &http.Client{Timeout: orDefaultDuration(cfg.Timeout, 120*time.Second)},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		redact:     cfg.Redact,
		retries: retryPolicy{
			maxRetries: orDefaultInt(cfg.MaxRetries, 3),
			retryDelay: orDefaultDuration(cfg.RetryDelay, time.Second),
		},
		logger: cfg.Logger,
	}, nil
}

// Complete implements llmagent.CompletionFunc.
func (p *OpenRouterProvider) Complete(ctx context.Context, req llmchat.ChatCompletionRequest) (llmchat.ChatCompletionResult, error) {
	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "tool", Cause: err}
	}

	wireReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		wireReq.Tools = toOpenAITools(req.Tools)
	}
	if choice := toOpenAIToolChoice(req.ToolChoice); choice != nil {
		wireReq.ToolChoice = choice
	}
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = req.MaxTokens
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "provider", Cause: err}
	}

	var raw orRawResponse
	err = withRetry(ctx, p.retries, func(err error) bool {
		return isRetryableErrMsg(err.Error())
	}, func(ctx context.Context, attemptNum int) error {
		r, callErr := p.doRequest(ctx, body)
		if callErr != nil {
			return callErr
		}
		raw = r
		return nil
	}, func(attemptNum int, retryErr error) {
		if p.logger != nil {
			p.logger.Warn(ctx, "provider retry", "provider", "openrouter", "model", req.Model, "attempt", attemptNum, "error", retryErr)
		}
	})
	if err != nil {
		return llmchat.ChatCompletionResult{}, classifyHTTPError("openrouter", req.Model, p.redact, err)
	}
	if len(raw.Choices) == 0 {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "provider", Cause: errors.New("openrouter: empty choices")}
	}

	return fromOpenRouterChoice(raw.Model, raw.Choices[0])
}

func (p *OpenRouterProvider) doRequest(ctx context.Context, body []byte) (orRawResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return orRawResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return orRawResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes*4))
	if err != nil {
		return orRawResponse{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return orRawResponse{}, &httpStatusError{status: resp.StatusCode, body: string(respBody)}
	}

	var out orRawResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return orRawResponse{}, &llmagent.ParseError{Source: "provider", Cause: err}
	}
	return out, nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.status, e.body)
}

func classifyHTTPError(provider, model string, redact func(string) string, err error) error {
	var hse *httpStatusError
	if errors.As(err, &hse) {
		return &llmagent.ProviderError{
			Provider: provider,
			Model:    model,
			Status:   hse.status,
			Message:  capErrorBody(redact, hse.body),
			Reason:   llmagent.ClassifyStatusCode(hse.status),
			Cause:    err,
		}
	}
	return &llmagent.TransportError{Provider: provider, Model: model, Cause: err}
}

// orRawResponse is a permissive decode target: OpenRouter's assistant
// message content may be a plain string OR an array of content blocks, so it
// is decoded as json.RawMessage and normalized by normalizeORContent.
type orRawResponse struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []orRawChoice `json:"choices"`
}

type orRawChoice struct {
	FinishReason string         `json:"finish_reason"`
	Message      orRawMessage   `json:"message"`
}

type orRawMessage struct {
	Role      string              `json:"role"`
	Content   json.RawMessage     `json:"content"`
	ToolCalls []orRawToolCall     `json:"tool_calls"`
}

type orRawToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type orContentBlock struct {
	Type  string                     `json:"type"`
	Text  string                     `json:"text,omitempty"`
	ID    string                     `json:"id,omitempty"`
	Name  string                     `json:"name,omitempty"`
	Input json.RawMessage            `json:"input,omitempty"`
	Extra map[string]json.RawMessage `json:"-"`
}

// fromOpenRouterChoice normalizes a raw choice into the provider-agnostic
// result, merging top-level tool_calls with any tool_use blocks embedded in
// content (spec.md §4.5's OpenRouter fallback).
func fromOpenRouterChoice(model string, choice orRawChoice) (llmchat.ChatCompletionResult, error) {
	result := llmchat.ChatCompletionResult{Model: model}

	blocks, text, wasArray, err := normalizeORContent(choice.Message.Content)
	if err != nil {
		return llmchat.ChatCompletionResult{}, &llmagent.ParseError{Source: "provider", Cause: err}
	}
	result.Text = text

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llmchat.ChatToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
	}

	// Fallback: tool_use blocks embedded in the content array.
	for _, b := range blocks {
		if b.Type == "tool_use" {
			result.ToolCalls = append(result.ToolCalls, llmchat.ChatToolCall{
				ID:            b.ID,
				Name:          b.Name,
				ArgumentsJSON: string(b.Input),
			})
		}
	}

	if wasArray {
		result.Structured = llmchat.BlocksContent(toLlmchatBlocks(blocks))
	}
	return result, nil
}

// normalizeORContent decodes content as either a bare string, a singleton
// object (wrapped into a 1-element array per spec.md §4.5), or an array of
// content blocks. It returns the parsed blocks (nil if content was a plain
// string), the flattened display text, and whether the original shape was
// non-scalar (so callers know to preserve Structured content verbatim).
func normalizeORContent(raw json.RawMessage) (blocks []orContentBlock, text string, wasArray bool, err error) {
	if len(raw) == 0 {
		return nil, "", false, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return nil, s, false, nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		blocks = make([]orContentBlock, 0, len(arr))
		var sb strings.Builder
		for _, item := range arr {
			var b orContentBlock
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
		return blocks, sb.String(), true, nil
	}

	var obj orContentBlock
	if err := json.Unmarshal(raw, &obj); err == nil {
		var extra map[string]json.RawMessage
		_ = json.Unmarshal(raw, &extra)
		obj.Extra = extra
		return []orContentBlock{obj}, obj.Text, true, nil
	}

	return nil, "", false, fmt.Errorf("openrouter: unrecognized content shape: %s", textutil.UTF8SafePrefix(string(raw), 200))
}

func toLlmchatBlocks(blocks []orContentBlock) []llmchat.ContentBlock {
	out := make([]llmchat.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, llmchat.ContentBlock{Type: llmchat.BlockText, Text: b.Text})
		case "tool_use":
			out = append(out, llmchat.ContentBlock{
				Type:              llmchat.BlockToolUse,
				ToolUseID:         b.ID,
				ToolName:          b.Name,
				ToolArgumentsJSON: string(b.Input),
			})
		default:
			out = append(out, llmchat.ContentBlock{Type: llmchat.BlockUnknown, Unknown: b.Extra})
		}
	}
	return out
}
