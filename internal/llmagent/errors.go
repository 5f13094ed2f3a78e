package llmagent

import (
	"errors"
	"fmt"
)

// Sentinel errors for agent loop operations.
var (
	// ErrMaxIterations indicates the runner reached maxIterations without a final answer.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrNoProvider indicates no completion function was configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrCancelled indicates a cancellation signal fired at a suspension point.
	ErrCancelled = errors.New("agent run cancelled")

	// ErrRunAborted indicates the approval gate returned CancelRun.
	ErrRunAborted = errors.New("agent run aborted by approval policy")
)

// LoopPhase names a distinct phase in the agent loop, for error attribution.
type LoopPhase string

const (
	PhaseInit          LoopPhase = "init"
	PhaseCompletion    LoopPhase = "completion"
	PhaseToolExecution LoopPhase = "tool_execution"
	PhaseCheckpoint    LoopPhase = "checkpoint"
	PhaseContinue      LoopPhase = "continue"
)

// LoopError reports an error with the phase and iteration it occurred in.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// ConfigError indicates a configuration error (missing API key, missing base
// URL, ...) that must fail fast before any remote I/O (spec.md §7).
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// TransportError reports an HTTP non-2xx or connection failure from a
// provider. Body is redacted and byte-capped (32000 bytes, spec.md §4.5)
// before it ever reaches this struct.
type TransportError struct {
	Provider   string
	Model      string
	StatusCode int
	Body       string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: provider=%s model=%s status=%d: %s", e.Provider, e.Model, e.StatusCode, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("transport error: provider=%s model=%s: %v", e.Provider, e.Model, e.Cause)
	}
	return fmt.Sprintf("transport error: provider=%s model=%s", e.Provider, e.Model)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ParseError wraps a malformed-JSON response from a provider or tool as a
// fixed invalid-response error (spec.md §7).
type ParseError struct {
	Source string // "provider" or "tool"
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s response: %v", e.Source, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// FailoverReason categorizes why a provider request failed, grounded on the
// teacher's internal/agent/providers/errors.go classification.
type FailoverReason string

const (
	FailoverBilling          FailoverReason = "billing"
	FailoverRateLimit        FailoverReason = "rate_limit"
	FailoverAuth             FailoverReason = "auth"
	FailoverTimeout          FailoverReason = "timeout"
	FailoverServerError      FailoverReason = "server_error"
	FailoverInvalidRequest   FailoverReason = "invalid_request"
	FailoverModelUnavailable FailoverReason = "model_unavailable"
	FailoverUnknown          FailoverReason = "unknown"
)

// IsRetryable reports whether the reason suggests retrying may succeed.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	default:
		return false
	}
}

// ProviderError is the structured error the providers in
// internal/llmchat/providers return when the provider API answers a
// completion request with an error status (spec.md §4.5/§7); connection and
// other non-API failures surface as *TransportError instead. Status/Message
// carry the status code and a redacted, byte-capped error body (never the
// raw API key).
type ProviderError struct {
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Reason    FailoverReason
	Cause     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error: provider=%s model=%s status=%d reason=%s: %s", e.Provider, e.Model, e.Status, e.Reason, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("provider error: provider=%s model=%s status=%d reason=%s: %v", e.Provider, e.Model, e.Status, e.Reason, e.Cause)
	}
	return fmt.Sprintf("provider error: provider=%s model=%s status=%d reason=%s", e.Provider, e.Model, e.Status, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ClassifyStatusCode maps an HTTP status code to a FailoverReason.
func ClassifyStatusCode(status int) FailoverReason {
	switch {
	case status == 401 || status == 403:
		return FailoverAuth
	case status == 402:
		return FailoverBilling
	case status == 429:
		return FailoverRateLimit
	case status == 400:
		return FailoverInvalidRequest
	case status >= 500:
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}
