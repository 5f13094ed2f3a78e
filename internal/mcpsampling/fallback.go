package mcpsampling

import (
	"encoding/json"
	"strings"

	"github.com/tonyredondo/debugger-mcp-server/internal/llmchat"
)

// FallbackExtractToolUse implements spec.md §4.6's "Fallback extraction" and
// the §9 re-architecture note ("Ad-hoc JSON regex parsing ... implement a
// balanced-brace scanner with explicit string-literal handling — do not rely
// on regex"). If text contains one or more JSON objects shaped like a
// tool_use block (possibly nested inside other text), each is parsed out,
// converted into a ChatToolCall, and its source range is removed from the
// returned display text.
func FallbackExtractToolUse(text string) (cleanedText string, calls []llmchat.ChatToolCall) {
	ranges := findBalancedObjects(text)
	if len(ranges) == 0 {
		return text, nil
	}

	var removed []objRange
	for _, r := range ranges {
		candidate := text[r.start:r.end]
		var obj struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			continue
		}
		if obj.Type != "tool_use" || obj.Name == "" {
			continue
		}
		args := string(obj.Input)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, llmchat.ChatToolCall{ID: obj.ID, Name: obj.Name, ArgumentsJSON: args})
		removed = append(removed, r)
	}

	if len(calls) == 0 {
		return text, nil
	}
	return stripRanges(text, removed), calls
}

type objRange struct {
	start, end int
}

// findBalancedObjects scans text for top-level `{...}` spans, tracking
// brace depth and skipping over string-literal contents (including escaped
// quotes) so braces inside strings never perturb the count.
func findBalancedObjects(text string) []objRange {
	var ranges []objRange
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					ranges = append(ranges, objRange{start: start, end: i + 1})
					start = -1
				}
			}
		}
	}
	return ranges
}

// stripRanges removes the given byte ranges from text, collapsing
// surrounding whitespace left behind.
func stripRanges(text string, ranges []objRange) string {
	var sb strings.Builder
	last := 0
	for _, r := range ranges {
		sb.WriteString(text[last:r.start])
		last = r.end
	}
	sb.WriteString(text[last:])
	return strings.TrimSpace(collapseBlankLines(sb.String()))
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
