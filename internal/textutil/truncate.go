// Package textutil holds small, dependency-free text helpers shared across
// the provider and agent packages: UTF-8-safe truncation and canonical JSON
// rendering.
package textutil

import (
	"bytes"
	"encoding/json"
	"sort"
	"unicode/utf8"
)

// UTF8SafePrefixBytes returns the longest prefix of b with length <= n that
// does not split a multi-byte UTF-8 code point. It backs off at most 4 bytes
// from n (valid UTF-8 never needs more than 3); if no code-point start lies
// within that window, it returns an empty prefix.
func UTF8SafePrefixBytes(b []byte, n int) []byte {
	if n >= len(b) {
		return b
	}
	if n < 0 {
		n = 0
	}
	cut := n
	for back := 0; back < 4 && cut > 0; back++ {
		if utf8.RuneStart(b[cut]) {
			break
		}
		cut--
	}
	// cut now sits on a rune boundary; decoding from there forward is safe.
	if !utf8.RuneStart(b[cut]) {
		cut = 0
	}
	return b[:cut]
}

// UTF8SafePrefix is the string convenience wrapper around UTF8SafePrefixBytes.
func UTF8SafePrefix(s string, n int) string {
	if n >= len(s) {
		return s
	}
	return string(UTF8SafePrefixBytes([]byte(s), n))
}

// ByteCapMarker truncates s to at most maxBytes UTF-8 bytes, appending suffix
// when truncation occurred. The suffix itself counts against the budget.
func ByteCapMarker(s string, maxBytes int, suffix string) string {
	if len(s) <= maxBytes {
		return s
	}
	budget := maxBytes - len(suffix)
	if budget < 0 {
		budget = 0
	}
	return UTF8SafePrefix(s, budget) + suffix
}

// CanonicalJSON re-serializes arbitrary JSON text with object keys sorted
// ordinal-ascending, recursively, and all insignificant whitespace elided.
// It is idempotent: CanonicalJSON(CanonicalJSON(x)) == CanonicalJSON(x) for
// any valid JSON input x. Invalid JSON is returned unchanged.
func CanonicalJSON(raw string) string {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	canon := canonicalize(v)
	buf, err := json.Marshal(canon)
	if err != nil {
		return raw
	}
	return string(buf)
}

// canonicalize rebuilds v so that encoding/json will emit sorted keys. Go's
// map iteration for map[string]any is already sorted by encoding/json, but we
// walk explicitly so nested maps decoded via json.Unmarshal (map[string]any)
// and ordered value types both canonicalize identically.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedObject, 0, len(keys))
		for _, k := range keys {
			out = append(out, kv{k, canonicalize(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return t
	}
}

type kv struct {
	Key   string
	Value any
}

// orderedObject marshals as a JSON object preserving the slice order, which
// canonicalize has already sorted by key.
type orderedObject []kv

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
