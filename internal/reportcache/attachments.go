package reportcache

import (
	"fmt"
	"strings"

	"github.com/tonyredondo/debugger-mcp-server/internal/redact"
	"github.com/tonyredondo/debugger-mcp-server/internal/textutil"
)

// Attachment is one candidate piece of content to inject into a prompt,
// ordered by priority: the manifest (list of available sections) is always
// injected first, individual sections next in caller-supplied order, and a
// free-text summary last, since it is the first thing dropped when the
// budget runs out (spec.md §4.7's "Byte-budgeted injection").
type Attachment struct {
	Title string
	Body  string
}

// ComposeInjection renders attachments into a single untrusted-content block,
// in order, until budgetBytes is exhausted. Every attachment except the last
// is either included in full or, once one does not fit, dropped together
// with every attachment after it. Only the last attachment (the summary, by
// caller convention) may be truncated, and only when every earlier one was
// included in full; the manifest attachment (attachments[0] by caller
// convention) is therefore never truncated unless it is the only one.
func ComposeInjection(attachments []Attachment, budgetBytes int) string {
	if len(attachments) == 0 || budgetBytes <= 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(redact.UntrustedAttachmentDirective)
	sb.WriteString("\n\n")
	used := sb.Len()

	for i, att := range attachments {
		block := fmt.Sprintf("### %s\n\n%s\n\n", att.Title, redact.FenceBlock(att.Body))
		remaining := budgetBytes - used
		if remaining <= 0 {
			break
		}
		if len(block) <= remaining {
			sb.WriteString(block)
			used += len(block)
			continue
		}

		// Out of budget: truncate this attachment's body to fit, then stop.
		// Per spec.md §4.7 a free-text summary is the one attachment allowed
		// to be truncated; section bodies are instead simply omitted once
		// they no longer fit, since a partial JSON section is not useful.
		isLast := i == len(attachments)-1
		if !isLast {
			break
		}
		overhead := len(block) - len(att.Body)
		if remaining <= overhead {
			break
		}
		truncated := textutil.ByteCapMarker(att.Body, remaining-overhead, "... (truncated report summary) ...")
		sb.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", att.Title, redact.FenceBlock(truncated)))
		break
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}
