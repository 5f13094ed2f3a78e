package reportcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tonyredondo/debugger-mcp-server/internal/textutil"
)

// maxSectionBytes is the verbatim-vs-split threshold of spec.md §4.7's
// slicing rules: a JSON value that serializes to no more than this many
// bytes is stored as-is; larger containers are split per-item, and larger
// primitives are replaced by a truncated placeholder.
const maxSectionBytes = 200000

// Section is one sliced artifact: a JSON value addressable by a stable JSON
// pointer within the original report, destined for its own cache file.
type Section struct {
	SectionID string          // the recognized top-level section name (e.g. "threads")
	Pointer   string          // JSON Pointer (RFC 6901) from the report root
	Value     json.RawMessage // verbatim value, or a placeholder for split/truncated content
}

// Slice walks root (the parsed top-level report object) and produces one
// Section per recognized analysis section, recursively splitting any value
// over maxSectionBytes (spec.md §4.7's "Recursive slicing"):
//   - an object or array over budget is split into one Section per child,
//     each keyed by a stable per-item pointer, plus a parent placeholder
//     Section listing the object's property names or the array's
//     {index, jsonPointer} samples;
//   - a primitive (string/number/bool/null) over budget is replaced in
//     place by a safe, UTF-8-truncated placeholder.
func Slice(root map[string]json.RawMessage) []Section {
	var out []Section
	for _, key := range objectKeys(root) {
		if !recognizedSections[key] {
			continue
		}
		pointer := "/" + escapePointerToken(key)
		out = append(out, sliceValue(key, pointer, root[key])...)
	}
	return out
}

// maxObjectProperties and maxArraySamples are the manifest listing caps of
// spec.md §4.7: an oversized object's split placeholder lists at most 200
// property names, an oversized array's lists at most 50 {index,jsonPointer}
// samples. Every child is still sliced and cached; only the manifest's
// visible listing is capped.
const (
	maxObjectProperties = 200
	maxArraySamples     = 50
)

func sliceValue(sectionID, pointer string, raw json.RawMessage) []Section {
	if len(raw) <= maxSectionBytes {
		return []Section{{SectionID: sectionID, Pointer: pointer, Value: raw}}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return splitObject(sectionID, pointer, obj)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return splitArray(sectionID, pointer, arr)
	}

	// Oversized primitive: emit a truncated placeholder in place.
	return []Section{{SectionID: sectionID, Pointer: pointer, Value: truncatedPlaceholder(raw)}}
}

// splitObject recursively slices each property of an oversized object,
// emitting one Section per property plus a manifest Section at pointer
// listing up to maxObjectProperties property names (spec.md §4.7).
func splitObject(sectionID, pointer string, obj map[string]json.RawMessage) []Section {
	keys := objectKeys(obj)
	var out []Section
	for _, k := range keys {
		childPointer := pointer + "/" + escapePointerToken(k)
		out = append(out, sliceValue(sectionID, childPointer, obj[k])...)
	}

	listed := keys
	if len(listed) > maxObjectProperties {
		listed = listed[:maxObjectProperties]
	}
	manifest, _ := json.Marshal(map[string]any{
		"splitContainer": true,
		"childCount":     len(keys),
		"properties":     listed,
	})
	return append([]Section{{SectionID: sectionID, Pointer: pointer, Value: manifest}}, out...)
}

// splitArray recursively slices each item of an oversized array, emitting
// one Section per item keyed by a stable per-item pointer (preferring
// dumpId, then threadId, then name, then the numeric index — spec.md
// §4.7's "Stable per-item keys"), plus a manifest Section listing up to
// maxArraySamples {index, jsonPointer} samples.
func splitArray(sectionID, pointer string, arr []json.RawMessage) []Section {
	var out []Section
	type sample struct {
		Index       int    `json:"index"`
		JSONPointer string `json:"jsonPointer"`
	}
	samples := make([]sample, 0, len(arr))
	for i, item := range arr {
		token := stableItemKey(item, i)
		childPointer := pointer + "/" + escapePointerToken(token)
		samples = append(samples, sample{Index: i, JSONPointer: childPointer})
		out = append(out, sliceValue(sectionID, childPointer, item)...)
	}

	listed := samples
	if len(listed) > maxArraySamples {
		listed = listed[:maxArraySamples]
	}
	manifest, _ := json.Marshal(map[string]any{
		"splitContainer": true,
		"childCount":     len(arr),
		"samples":        listed,
	})
	return append([]Section{{SectionID: sectionID, Pointer: pointer, Value: manifest}}, out...)
}

// stableItemKey picks the pointer token for one array item, preferring
// dumpId, then threadId, then name (each taken from the item if it is a JSON
// object carrying that field as a string or number), falling back to the
// numeric index.
func stableItemKey(item json.RawMessage, index int) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err == nil {
		for _, field := range []string{"dumpId", "threadId", "name"} {
			if raw, ok := obj[field]; ok {
				if key, ok := scalarAsString(raw); ok && key != "" {
					return key
				}
			}
		}
	}
	return strconv.Itoa(index)
}

func scalarAsString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// truncatedPlaceholder replaces an oversized primitive value with a small
// JSON object carrying a UTF-8-safe truncated preview and the original byte
// length, never splitting a multi-byte rune.
func truncatedPlaceholder(raw json.RawMessage) json.RawMessage {
	const previewBytes = 2048
	preview := string(textutil.UTF8SafePrefixBytes(raw, previewBytes))
	placeholder, _ := json.Marshal(map[string]any{
		"truncated":     true,
		"originalBytes": len(raw),
		"preview":       preview,
	})
	return placeholder
}

// escapePointerToken applies RFC 6901 JSON Pointer escaping: "~" becomes
// "~0" and "/" becomes "~1".
func escapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return token
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeSectionID converts a JSON pointer into a filesystem-safe fragment
// suitable for prefixing a cache file name, capped at 120 bytes per
// spec.md §4.7's file-naming rule.
func SanitizeSectionID(pointer string) string {
	id := strings.TrimPrefix(pointer, "/")
	id = nonAlnum.ReplaceAllString(id, "-")
	if len(id) > 120 {
		id = id[:120]
	}
	if id == "" {
		id = "root"
	}
	return id
}

// SectionFileName derives the on-disk file name for a cached section, per
// spec.md §4.7: sanitize(sectionId)[:120] + "-" +
// sha256(sectionId+"|"+jsonPointer)[:12] + ".json".
func SectionFileName(sectionID, jsonPointer string) string {
	sum := sha256.Sum256([]byte(sectionID + "|" + jsonPointer))
	return fmt.Sprintf("%s-%s.json", SanitizeSectionID(sectionID), hex.EncodeToString(sum[:])[:12])
}

func objectKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

