package config

import (
	"strings"
	"testing"
)

func TestAIAnalysisCacheDirHonorsOverride(t *testing.T) {
	t.Setenv("DEBUGGER_MCP_AI_ANALYSIS_CACHE_DIR", "/tmp/custom-cache")
	if got := AIAnalysisCacheDir(); got != "/tmp/custom-cache" {
		t.Fatalf("expected override to win, got %q", got)
	}
}

func TestAIAnalysisCacheDirFallsBackUnderConfigRoot(t *testing.T) {
	t.Setenv("DEBUGGER_MCP_AI_ANALYSIS_CACHE_DIR", "")
	t.Setenv("AI_ANALYSIS_CACHE_DIR", "")
	t.Setenv("DEBUGGER_MCP_CONFIG_DIR", "/tmp/cfg-root")

	got := AIAnalysisCacheDir()
	if !strings.HasPrefix(got, "/tmp/cfg-root") || !strings.HasSuffix(got, "cache/ai-analysis") {
		t.Fatalf("expected path under config root, got %q", got)
	}
}

func TestAnalysisCacheEntryIsStableAndSanitized(t *testing.T) {
	p1 := AnalysisCacheEntry("/root/cache", "dump/with/slashes", "openai", "gpt-5", "high")
	p2 := AnalysisCacheEntry("/root/cache", "dump/with/slashes", "openai", "gpt-5", "high")
	if p1 != p2 {
		t.Fatalf("expected identical inputs to produce identical paths")
	}
	if strings.Contains(p1, "//") {
		t.Fatalf("expected slashes in dumpID to be sanitized, got %q", p1)
	}

	p3 := AnalysisCacheEntry("/root/cache", "dump/with/slashes", "openai", "gpt-5", "low")
	if p1 == p3 {
		t.Fatalf("expected different effort to change the cache entry path")
	}
}
