// Package config resolves the handful of environment variables spec.md §6
// names for cache roots, read once at construction time by thin helpers
// rather than scattered through the core (SPEC_FULL.md's "Configuration"
// ambient-stack section). Everything else — provider credentials, model
// selection, timeouts — is accepted as an explicit struct built by the
// out-of-scope CLI layer.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultConfigDirName is appended to the user config home when $CONFIG is
// unset (spec.md §6's "$CONFIG" root).
const defaultConfigDirName = "debugger-mcp"

// ConfigRoot resolves $CONFIG: the DEBUGGER_MCP_CONFIG_DIR environment
// variable if set, else os.UserConfigDir()/debugger-mcp, else a temp
// directory as a last resort so callers never fail merely to compute a path.
func ConfigRoot() string {
	if v := os.Getenv("DEBUGGER_MCP_CONFIG_DIR"); v != "" {
		return v
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, defaultConfigDirName)
	}
	return filepath.Join(os.TempDir(), defaultConfigDirName)
}

// AIAnalysisCacheDir resolves $CONFIG/cache/ai-analysis, honoring the
// DEBUGGER_MCP_AI_ANALYSIS_CACHE_DIR override (and its short alias
// AI_ANALYSIS_CACHE_DIR) named in spec.md §6.
func AIAnalysisCacheDir() string {
	if v := os.Getenv("DEBUGGER_MCP_AI_ANALYSIS_CACHE_DIR"); v != "" {
		return v
	}
	if v := os.Getenv("AI_ANALYSIS_CACHE_DIR"); v != "" {
		return v
	}
	return filepath.Join(ConfigRoot(), "cache", "ai-analysis")
}

// ReportCacheDir resolves $CONFIG/cache/reports (spec.md §6).
func ReportCacheDir() string {
	return filepath.Join(ConfigRoot(), "cache", "reports")
}

// TraceDir resolves $CONFIG/llmagent-trace (spec.md §6).
func TraceDir() string {
	return filepath.Join(ConfigRoot(), "llmagent-trace")
}

// maxPathSegmentLen caps each sanitized directory segment spec.md §6 names.
const maxPathSegmentLen = 120

// sanitizeSegment restricts a path segment to filesystem-safe characters,
// capped at maxPathSegmentLen bytes.
func sanitizeSegment(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}
	out := sb.String()
	if len(out) > maxPathSegmentLen {
		out = out[:maxPathSegmentLen]
	}
	if out == "" {
		out = "_"
	}
	return out
}

// AnalysisCacheEntry returns the on-disk path for a canonical AI analysis
// result, keyed by dumpID|provider|model|effort per spec.md §6:
// <root>/<dumpId>/<provider>/<model>/<effort>-<hash12>.json, where hash12 is
// the first 12 hex characters of SHA-256 of the stable "dumpId|provider|
// model|effort" string.
func AnalysisCacheEntry(root, dumpID, provider, model, effort string) string {
	stable := fmt.Sprintf("%s|%s|%s|%s", dumpID, provider, model, effort)
	sum := sha256.Sum256([]byte(stable))
	hash12 := hex.EncodeToString(sum[:])[:12]
	fileName := fmt.Sprintf("%s-%s.json", sanitizeSegment(effort), hash12)
	return filepath.Join(root, sanitizeSegment(dumpID), sanitizeSegment(provider), sanitizeSegment(model), fileName)
}
