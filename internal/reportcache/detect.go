// Package reportcache implements the report cache and attachment pipeline of
// spec.md §4.7: detecting large, well-known structured crash reports,
// content-addressed caching into per-section JSON artifacts, and
// byte-budgeted injection of those sections into a prompt. It is new
// relative to the teacher (no direct file analogue), grounded on the
// teacher's content-hash-keyed dedupe idea in internal/cache/dedupe.go.
package reportcache

import (
	"bytes"
	"encoding/json"
)

// detectionPrefixBytes bounds the scan to the leading 512 KiB of a candidate
// file, per spec.md §4.7.
const detectionPrefixBytes = 512 * 1024

// recognizedSections is the fixed set of analysis-section names spec.md §4.7
// requires at least one of, alongside metadata.dumpId, for a file to be
// classified as a structured report.
var recognizedSections = map[string]bool{
	"environment":     true,
	"threads":         true,
	"modules":         true,
	"assemblies":      true,
	"signature":       true,
	"symbols":         true,
	"stackSelection":  true,
	"timeline":        true,
	"memory":          true,
	"async":           true,
	"synchronization": true,
}

// IsStructuredReport reports whether data's leading detectionPrefixBytes
// parse as a JSON object (depth <= 2, tolerant of truncation past that
// prefix) carrying a non-empty metadata.dumpId string and at least one
// recognized analysis section (spec.md §4.7's "Detection").
func IsStructuredReport(data []byte) bool {
	if len(data) > detectionPrefixBytes {
		data = data[:detectionPrefixBytes]
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		if !decodesAsTruncatedObject(data, &top) {
			return false
		}
	}
	if len(top) == 0 {
		return false
	}

	if !hasNonEmptyDumpID(top["metadata"]) {
		return false
	}

	for key := range top {
		if recognizedSections[key] {
			return true
		}
	}
	return false
}

// decodesAsTruncatedObject re-attempts the top-level decode with a lenient
// streaming token scan: a prefix cut off mid-value can still reveal complete
// leading fields (including metadata and the first analysis sections),
// which is all detection needs.
func decodesAsTruncatedObject(data []byte, out *map[string]json.RawMessage) bool {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return false
	}

	result := make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		key, ok := keyTok.(string)
		if !ok {
			break
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}
		result[key] = raw
	}
	*out = result
	return len(result) > 0
}

func hasNonEmptyDumpID(metadata json.RawMessage) bool {
	if len(metadata) == 0 {
		return false
	}
	var m struct {
		DumpID string `json:"dumpId"`
	}
	if err := json.Unmarshal(metadata, &m); err != nil {
		return false
	}
	return m.DumpID != ""
}
