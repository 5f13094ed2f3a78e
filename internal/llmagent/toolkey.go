package llmagent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tonyredondo/debugger-mcp-server/internal/textutil"
)

// ToolKey derives the stable, canonical key described in spec.md §4.1: it is
// insensitive to whitespace, case, and JSON key order, so that two
// syntactically different but semantically equal tool calls dedupe in the
// evidence ledger (spec.md §8, "Tool key stability").
func ToolKey(toolName, argumentsJSON string) string {
	lowerName := strings.ToLower(strings.TrimSpace(toolName))
	switch lowerName {
	case "exec":
		return "exec:" + normalizeExecCommand(argumentsJSON)
	case "analyze":
		return "analyze:" + strings.ToLower(strings.TrimSpace(extractStringField(argumentsJSON, "kind")))
	default:
		return lowerName + ":" + textutil.CanonicalJSON(argumentsJSON)
	}
}

// ToolKeyHash is the SHA-256 hex digest of a ToolKey, used as the first half
// of the ledger's de-duplication identity.
func ToolKeyHash(toolKey string) string {
	sum := sha256.Sum256([]byte(toolKey))
	return hex.EncodeToString(sum[:])
}

// ToolOutputHash is the SHA-256 hex digest of raw tool output bytes, used as
// the second half of the ledger's de-duplication identity. Hashing happens
// on the bytes the ledger is given to hash, before truncation for storage.
func ToolOutputHash(output []byte) string {
	sum := sha256.Sum256(output)
	return hex.EncodeToString(sum[:])
}

func normalizeExecCommand(argumentsJSON string) string {
	cmd := extractStringField(argumentsJSON, "command")
	cmd = strings.TrimSpace(cmd)
	fields := strings.Fields(cmd) // collapses all whitespace runs
	return strings.ToLower(strings.Join(fields, " "))
}

// extractStringField pulls a single string field out of a JSON object without
// requiring the caller to define a struct for every tool's argument shape.
// Missing or non-string fields yield "".
func extractStringField(argumentsJSON, field string) string {
	if strings.TrimSpace(argumentsJSON) == "" {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(argumentsJSON), &m); err != nil {
		return ""
	}
	raw, ok := m[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

const truncationMarkerFormat = "\n... [truncated, total %d chars]\n"

// TruncateToolResult implements the head/tail split truncation policy of
// spec.md §4.1: when output exceeds maxChars, keep a head/tail split around a
// marker; below 128 chars the cap is too small for a marker and only the head
// prefix is returned.
func TruncateToolResult(result string, maxChars int) string {
	runes := []rune(result)
	if len(runes) <= maxChars {
		return result
	}
	if maxChars < 128 {
		return string(runes[:max0(maxChars)])
	}

	marker := sprintfMarker(len(runes))
	markerLen := len([]rune(marker))
	remaining := maxChars - markerLen
	if remaining < 2 {
		// Degenerate: not enough room for both halves plus the marker.
		return string(runes[:max0(maxChars)])
	}
	headLen := remaining / 2
	tailLen := remaining - headLen

	head := string(runes[:headLen])
	tail := string(runes[len(runes)-tailLen:])
	out := head + marker + tail
	// Guard against off-by-one rune-count drift from the marker length calc.
	if outRunes := []rune(out); len(outRunes) > maxChars {
		out = string(outRunes[:maxChars])
	}
	return out
}

func sprintfMarker(totalChars int) string {
	return fmt.Sprintf(truncationMarkerFormat, totalChars)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
