package llmagent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tonyredondo/debugger-mcp-server/internal/textutil"
)

// Fixed tag vocabulary (spec.md §4.2).
const (
	TagOrientReportIndex = "ORIENT_REPORT_INDEX"
	TagBaselineMeta      = "BASELINE_META"
	TagBaselineSummary   = "BASELINE_SUMMARY"
	TagBaselineEnv       = "BASELINE_ENV"
	TagBaselineExcType   = "BASELINE_EXC_TYPE"
	TagBaselineExcMsg    = "BASELINE_EXC_MESSAGE"
	TagBaselineExcHR     = "BASELINE_EXC_HRESULT"
	TagBaselineExcStack  = "BASELINE_EXC_STACKTRACE"
	TagReportGet         = "REPORT_GET"
	TagExec              = "EXEC"
	TagAttachedReport    = "ATTACHED_REPORT"
)

// AnalyzeTag builds the ANALYZE:<kind> tag for an analyze tool call.
func AnalyzeTag(kind string) string {
	return "ANALYZE:" + strings.ToLower(strings.TrimSpace(kind))
}

// TagsForCall derives the fixed tag set for a tool call, per spec.md §4.2.
func TagsForCall(toolName, argumentsJSON string) []string {
	name := strings.ToLower(strings.TrimSpace(toolName))
	switch name {
	case "report_index":
		return []string{TagOrientReportIndex}
	case "report_get":
		path := strings.ToLower(strings.TrimSpace(extractStringField(argumentsJSON, "path")))
		switch path {
		case "metadata":
			return []string{TagBaselineMeta}
		case "analysis.summary":
			return []string{TagBaselineSummary}
		case "analysis.environment":
			return []string{TagBaselineEnv}
		case "analysis.exception.type":
			return []string{TagBaselineExcType}
		case "analysis.exception.message":
			return []string{TagBaselineExcMsg}
		case "analysis.exception.hresult":
			return []string{TagBaselineExcHR}
		case "analysis.exception.stacktrace", "analysis.exception.analysis":
			return []string{TagBaselineExcStack}
		default:
			return []string{TagReportGet}
		}
	case "exec":
		return []string{TagExec}
	case "analyze":
		return []string{AnalyzeTag(extractStringField(argumentsJSON, "kind"))}
	case "find_report_sections", "get_report_section":
		return []string{TagAttachedReport}
	default:
		return []string{TagReportGet}
	}
}

// EvidenceEntry is the append-only record described in spec.md §3.
type EvidenceEntry struct {
	EvidenceID        string
	ToolName          string
	ArgumentsJSON     string
	ToolKey           string
	ToolKeyHash       string
	ToolOutputHash    string
	ToolResultPreview string
	Tags              []string
	ToolWasError      bool
	SeenCount         int
	FirstSeenAtUTC    time.Time
	LastSeenAtUTC     time.Time
}

// HasTag reports whether tag (case-insensitive) is present on the entry.
func (e EvidenceEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// previewByteCap matches the 400-byte UTF-8-safe preview cap in spec.md §3.
const previewByteCap = 400

// Ledger is the content-addressed, append-only evidence store (spec.md §4.2).
// A single mutex serializes mutations; Entries returns a snapshot copy.
type Ledger struct {
	mu       sync.Mutex
	entries  []EvidenceEntry
	byDedupe map[dedupeKey]int // index into entries, for O(1) dedupe lookup
	nextID   int
}

type dedupeKey struct {
	toolKeyHash    string
	toolOutputHash string
}

// NewLedger constructs an empty evidence ledger.
func NewLedger() *Ledger {
	return &Ledger{byDedupe: make(map[dedupeKey]int)}
}

// AddOrUpdate records a tool result. If an entry with the same
// (toolKeyHash, toolOutputHash) already exists, its seenCount and
// lastSeenAtUtc are bumped and isNew is false; otherwise a new entry with the
// next monotonic evidenceId is appended and isNew is true (spec.md §3/§4.2,
// §8 "Evidence uniqueness" and "Id monotonicity").
func (l *Ledger) AddOrUpdate(toolName, argumentsJSON, toolKey string, outputBytesForHashing []byte, preview string, tags []string, wasError bool, timestamp time.Time) (EvidenceEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	keyHash := ToolKeyHash(toolKey)
	outHash := ToolOutputHash(outputBytesForHashing)
	key := dedupeKey{toolKeyHash: keyHash, toolOutputHash: outHash}

	if idx, ok := l.byDedupe[key]; ok {
		l.entries[idx].SeenCount++
		l.entries[idx].LastSeenAtUTC = timestamp
		return l.entries[idx], false
	}

	l.nextID++
	entry := EvidenceEntry{
		EvidenceID:        fmt.Sprintf("E%d", l.nextID),
		ToolName:          toolName,
		ArgumentsJSON:     argumentsJSON,
		ToolKey:           toolKey,
		ToolKeyHash:       keyHash,
		ToolOutputHash:    outHash,
		ToolResultPreview: textutil.UTF8SafePrefix(preview, previewByteCap),
		Tags:              append([]string(nil), tags...),
		ToolWasError:      wasError,
		SeenCount:         1,
		FirstSeenAtUTC:    timestamp,
		LastSeenAtUTC:     timestamp,
	}
	l.entries = append(l.entries, entry)
	l.byDedupe[key] = len(l.entries) - 1
	return entry, true
}

// TryGetLatestByTag returns the newest (chronological) entry whose tag set
// contains tag (case-insensitive), or false if none exists.
func (l *Ledger) TryGetLatestByTag(tag string) (EvidenceEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].HasTag(tag) {
			return l.entries[i], true
		}
	}
	return EvidenceEntry{}, false
}

// Entries returns a snapshot copy of all entries in insertion (chronological) order.
func (l *Ledger) Entries() []EvidenceEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]EvidenceEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset clears all entries and the id counter.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	l.byDedupe = make(map[dedupeKey]int)
	l.nextID = 0
}

// Len returns the number of distinct evidence entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
