// Package workflow defines tenant-authored automation definitions: ordered
// question scripts, trigger configuration, publish state, and the workflow
// store interface.
package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/enromatics/chatflow"
	"github.com/enromatics/chatflow/id"
)

// Status represents the administrative lifecycle state of a workflow.
// Status is distinct from the publish flag: only Published gates trigger
// matching. A workflow can be inactive yet still published, and it will
// keep matching until unpublished.
type Status string

const (
	// StatusDraft means the workflow is being authored.
	StatusDraft Status = "draft"
	// StatusActive means the workflow is live.
	StatusActive Status = "active"
	// StatusInactive means the workflow was retired (soft delete).
	StatusInactive Status = "inactive"
)

// Kind categorizes what a workflow is for. Free-form beyond the
// well-known values; tenants mostly use these.
type Kind string

const (
	KindAdmission Kind = "admission"
	KindDemo      Kind = "demo"
	KindInquiry   Kind = "inquiry"
	KindLead      Kind = "lead"
	KindCustom    Kind = "custom"
)

// QuestionType selects the answer shape a question expects.
type QuestionType string

const (
	// QuestionText expects a free-form text answer.
	QuestionText QuestionType = "text"
	// QuestionChoice expects one answer from Options.
	QuestionChoice QuestionType = "choice"
	// QuestionMultiSelect expects one or more answers from Options.
	QuestionMultiSelect QuestionType = "multiselect"
)

// Question is one step in a workflow's script.
type Question struct {
	ID          id.QuestionID `json:"id"`
	Order       int           `json:"order"`
	Text        string        `json:"text"`
	Description string        `json:"description,omitempty"`
	Type        QuestionType  `json:"type"`
	Options     []string      `json:"options,omitempty"`
	Required    bool          `json:"required"`

	// Extraction flags: answers to flagged questions are copied into the
	// conversation's normalized extracted fields.
	IsNameField   bool `json:"is_name_field"`
	IsMobileField bool `json:"is_mobile_field"`

	// CRMField maps this question's answer onto a CRM field name
	// ("email", or a tenant-defined custom field). Empty means no mapping.
	CRMField string `json:"crm_field,omitempty"`

	Placeholder string `json:"placeholder,omitempty"`
	HelpText    string `json:"help_text,omitempty"`
}

// Counter names a workflow statistic maintained by the engine through
// atomic store-side increments.
type Counter string

const (
	// CounterConversations counts conversations started by a trigger match.
	CounterConversations Counter = "conversation_count"
	// CounterCompletions counts conversations that answered every question.
	CounterCompletions Counter = "completion_count"
)

// DefaultTriggerKeyword is used when a workflow has no trigger configured.
const DefaultTriggerKeyword = "hi"

// Workflow is a tenant-defined ordered question script plus trigger
// configuration. Created and edited by the administrative layer; the
// engine only reads it and bumps counters.
type Workflow struct {
	chatflow.Entity

	ID       id.WorkflowID `json:"id"`
	TenantID string        `json:"tenant_id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        Kind   `json:"kind"`

	Questions []Question `json:"questions"`

	// ChannelIdentity scopes the workflow to one messaging endpoint
	// (e.g. a WhatsApp phone number id). Empty means the workflow
	// matches any channel identity belonging to the tenant.
	ChannelIdentity string `json:"channel_identity,omitempty"`

	// TriggerKeywords is the raw comma-separated keyword list as authored.
	// Use Keywords() for the normalized form.
	TriggerKeywords string `json:"trigger_keywords"`

	// InitialMessage is prepended to the first question when a
	// conversation is triggered.
	InitialMessage string `json:"initial_message,omitempty"`
	// CompletionMessage is sent after the last question is answered.
	CompletionMessage string `json:"completion_message,omitempty"`

	Status      Status     `json:"status"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	ConversationCount int64 `json:"conversation_count"`
	CompletionCount   int64 `json:"completion_count"`
}

// Keywords returns the workflow's trigger keywords normalized for
// matching: comma-split, lowercased, trimmed, empty entries dropped.
// A workflow with no configured trigger falls back to the default "hi".
func (w *Workflow) Keywords() []string {
	raw := w.TriggerKeywords
	if strings.TrimSpace(raw) == "" {
		raw = DefaultTriggerKeyword
	}

	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		k := strings.ToLower(strings.TrimSpace(p))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// QuestionAt returns the question at index i, or false if i is out of
// range for this workflow's script.
func (w *Workflow) QuestionAt(i int) (Question, bool) {
	if i < 0 || i >= len(w.Questions) {
		return Question{}, false
	}
	return w.Questions[i], true
}

// IsLastQuestion reports whether index i addresses the final question.
func (w *Workflow) IsLastQuestion(i int) bool {
	return i == len(w.Questions)-1
}

// MatchesChannel reports whether the workflow may serve the given channel
// identity. Unscoped workflows serve every identity of their tenant.
func (w *Workflow) MatchesChannel(channelIdentity string) bool {
	return w.ChannelIdentity == "" || w.ChannelIdentity == channelIdentity
}

// Publish validation errors.
var (
	ErrNoQuestions   = errors.New("workflow: cannot publish with no questions")
	ErrNoNameField   = errors.New("workflow: no question flagged as the name field")
	ErrNoMobileField = errors.New("workflow: no question flagged as the mobile field")
)

// CheckPublishable verifies the invariants the administrative layer must
// enforce before first publish: a non-empty script with at least one
// name-field and one mobile-field question.
func (w *Workflow) CheckPublishable() error {
	if len(w.Questions) == 0 {
		return ErrNoQuestions
	}

	var hasName, hasMobile bool
	for _, q := range w.Questions {
		if q.IsNameField {
			hasName = true
		}
		if q.IsMobileField {
			hasMobile = true
		}
	}
	if !hasName {
		return ErrNoNameField
	}
	if !hasMobile {
		return ErrNoMobileField
	}
	return nil
}
