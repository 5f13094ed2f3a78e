package llmagent

import "strings"

// BaselineItem is one entry in the fixed, ordered baseline plan: a tag the
// ledger must carry a non-error latest entry for, plus the planned tool call
// that would produce it.
type BaselineItem struct {
	Tag           string
	ToolName      string
	ArgumentsJSON string
}

// Baseline is the canonical ordered set described in spec.md §3/§4.4: the
// minimal evidence required before a conclusion-seeking prompt may be
// answered.
var Baseline = []BaselineItem{
	{Tag: TagBaselineMeta, ToolName: "report_get", ArgumentsJSON: `{"path":"metadata"}`},
	{Tag: TagBaselineSummary, ToolName: "report_get", ArgumentsJSON: `{"path":"analysis.summary"}`},
	{Tag: TagBaselineEnv, ToolName: "report_get", ArgumentsJSON: `{"path":"analysis.environment"}`},
	{Tag: TagBaselineExcType, ToolName: "report_get", ArgumentsJSON: `{"path":"analysis.exception.type"}`},
	{Tag: TagBaselineExcMsg, ToolName: "report_get", ArgumentsJSON: `{"path":"analysis.exception.message"}`},
	{Tag: TagBaselineExcHR, ToolName: "report_get", ArgumentsJSON: `{"path":"analysis.exception.hresult"}`},
	{Tag: TagBaselineExcStack, ToolName: "report_get", ArgumentsJSON: `{"path":"analysis.exception.stackTrace","select":["frames"]}`},
}

// conclusionKeywords is the fixed keyword set of spec.md §4.4.
var conclusionKeywords = []string{
	"root cause",
	"why did",
	"why does",
	"what happened",
	"analyze",
	"analysis",
	"recommend",
	"recommendation",
	"conclusion",
	"explain the crash",
	"explain this crash",
}

// IsConclusionSeeking reports whether prompt text (after lowercasing and
// trimming) matches any conclusion-seeking keyword.
func IsConclusionSeeking(prompt string) bool {
	p := strings.ToLower(strings.TrimSpace(prompt))
	for _, kw := range conclusionKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

// MissingBaseline returns the baseline items whose tag has no non-error
// latest ledger entry, in canonical order.
func MissingBaseline(l *Ledger) []BaselineItem {
	var missing []BaselineItem
	for _, item := range Baseline {
		entry, ok := l.TryGetLatestByTag(item.Tag)
		if !ok || entry.ToolWasError {
			missing = append(missing, item)
		}
	}
	return missing
}

// BaselineComplete reports whether every baseline tag has a non-error latest entry.
func BaselineComplete(l *Ledger) bool {
	return len(MissingBaseline(l)) == 0
}
