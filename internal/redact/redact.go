// Package redact implements the two redactors of spec.md §4.8: a broad
// transcript redactor and a narrower agent-trace redactor that preserves
// debugger token artifacts. Both are grounded on the builtin secret-pattern
// approach in the teacher's internal/agent/tool_result_guard.go.
package redact

import "regexp"

const replacement = "[REDACTED]"

// commonPatterns matches secret shapes both redactors scrub: API keys in
// common JSON/query shapes, Authorization bearers, provider-style raw keys,
// and PEM private key blocks.
var commonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-api-key)\s*[:=]\s*['"]?[\w-]{16,}['"]?`),
	regexp.MustCompile(`(?i)authorization\s*:\s*bearer\s+[\w\-.]+`),
	regexp.MustCompile(`(?i)bearer\s+[\w\-.]{16,}`),
	regexp.MustCompile(`(?i)\b(sk|rk)-[A-Za-z0-9]{16,}\b`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

// passwordSecretPattern matches "password=...", "secret=...", "api_key=..."
// style assignments. The transcript redactor applies it against the bare
// word "token" too; the agent-trace redactor's variant (below) excludes
// "token" so debugger method-token artifacts like 0x06000001 survive.
var passwordSecretPattern = regexp.MustCompile(`(?i)(password|passwd|secret|api_key)\s*[:=]\s*['"]?[^\s'"]{6,}['"]?`)
var passwordSecretOrTokenPattern = regexp.MustCompile(`(?i)(password|passwd|secret|api_key|token)\s*[:=]\s*['"]?[^\s'"]{6,}['"]?`)

// envKeyPattern matches provider-keyed environment variable assignments,
// e.g. ANTHROPIC_API_KEY=..., OPENAI_API_KEY=...
var envKeyPattern = regexp.MustCompile(`(?i)\b[A-Z][A-Z0-9_]*_(API_KEY|TOKEN|SECRET)\s*=\s*\S+`)

func applyAll(s string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		s = re.ReplaceAllString(s, replacement)
	}
	return s
}

// Transcript is the broad redactor (spec.md §4.8): applied before the model
// ever sees a tool output and before error bodies are surfaced. It
// aggressively scrubs the bare word "token" whenever it looks like an
// assignment, which would otherwise destroy legitimate debugger artifacts —
// that's what the narrower AgentTrace redactor is for.
func Transcript(s string) string {
	s = applyAll(s, commonPatterns)
	s = envKeyPattern.ReplaceAllString(s, replacement)
	s = passwordSecretOrTokenPattern.ReplaceAllString(s, replacement)
	return s
}

// AgentTrace is the narrower redactor used before anything is written to
// disk traces (spec.md §4.8): identical secret categories, but it does not
// treat the bare word "token" as a secret-assignment trigger, so debugger
// artifacts like method tokens (0x06000001) survive untouched.
func AgentTrace(s string) string {
	s = applyAll(s, commonPatterns)
	s = envKeyPattern.ReplaceAllString(s, replacement)
	s = passwordSecretPattern.ReplaceAllString(s, replacement)
	return s
}
