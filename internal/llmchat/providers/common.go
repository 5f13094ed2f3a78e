// Package providers implements the three provider-specific wire adapters
// named in spec.md §4.5: OpenAI-style chat/completions, OpenRouter (the same
// wire shape plus a content-block tool-use fallback), and Anthropic Messages.
// Each adapter satisfies llmagent.CompletionFunc so the Runner never knows
// which provider it is talking to.
package providers

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmagent"
	"github.com/tonyredondo/debugger-mcp-server/internal/textutil"
)

// maxErrorBodyBytes is the byte cap on a redacted error body surfaced from a
// transport failure (spec.md §4.5/§5).
const maxErrorBodyBytes = 32000

// capErrorBody redacts and byte-caps an error body before it is attached to a
// ProviderError, per spec.md §4.5 ("never log or include API keys in error
// messages; error bodies are byte-capped to 32000 and redacted").
func capErrorBody(redact func(string) string, body string) string {
	if redact != nil {
		body = redact(body)
	}
	return textutil.ByteCapMarker(body, maxErrorBodyBytes, "\n... [truncated]")
}

// retryPolicy mirrors the teacher's exponential-backoff shape
// (internal/agent/providers/openai.go: maxRetries, retryDelay*2^attempt),
// adopted per SPEC_FULL.md's "Provider retry/backoff" supplemented feature.
type retryPolicy struct {
	maxRetries int
	retryDelay time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxRetries: 3, retryDelay: time.Second}
}

// withRetry runs attempt up to p.maxRetries+1 times, backing off
// exponentially between attempts, and stops early once shouldRetry reports
// false for the returned error. It never retries once ctx is done. onRetry,
// if non-nil, is called before each retry's backoff sleep with the retry
// number and the error that triggered it — providers use it to log a structured retry event (SPEC_FULL.md's ambient
// "every provider retry logs a structured event").
func withRetry(ctx context.Context, p retryPolicy, shouldRetry func(error) bool, attempt func(ctx context.Context, attemptNum int) error, onRetry func(attemptNum int, err error)) error {
	var lastErr error
	for n := 0; n <= p.maxRetries; n++ {
		if n > 0 {
			if onRetry != nil {
				onRetry(n, lastErr)
			}
			delay := time.Duration(float64(p.retryDelay) * math.Pow(2, float64(n-1)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		lastErr = attempt(ctx, n)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// estimateTokens is the teacher's character-based estimator (~4 chars/token).
// No provider in this package calls it: requests are sent without a
// pre-flight size check or size log line.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// isRetryableErrMsg matches the teacher's substring-based retry classifier
// (internal/agent/providers/openai.go: isRetryableError) against a lowercase
// error string.
func isRetryableErrMsg(msg string) bool {
	m := strings.ToLower(msg)
	for _, needle := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(m, needle) {
			return true
		}
	}
	return false
}

// llmagentProviderError is a tiny alias so provider files don't have to spell
// out the full package path at every construction site.
type llmagentProviderError = llmagent.ProviderError
