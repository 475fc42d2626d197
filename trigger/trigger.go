// Package trigger implements keyword matching of inbound text against
// published workflows. Matching is pure: it touches no storage and has
// no side effects, so callers decide what a match means.
package trigger

import (
	"strings"

	"github.com/enromatics/chatflow/workflow"
)

// Match returns the first workflow in candidates whose keyword list
// matches text, or nil when nothing matches. Candidates are checked in
// the order given, so callers control precedence by ordering.
//
// A keyword matches when it appears as a substring of the lowercased,
// trimmed text. Text that is empty after trimming matches nothing.
func Match(text string, candidates []*workflow.Workflow) *workflow.Workflow {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	for _, wf := range candidates {
		for _, kw := range wf.Keywords() {
			if strings.Contains(normalized, kw) {
				return wf
			}
		}
	}
	return nil
}
