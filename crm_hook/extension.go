package crmhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/ext"
	"github.com/enromatics/chatflow/id"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*Extension)(nil)
	_ ext.ConversationCompleted = (*Extension)(nil)
	_ ext.ConversationAbandoned = (*Extension)(nil)
)

// Sink is the interface that CRM backends must implement. It is defined
// locally so this package does not import any concrete CRM client —
// callers inject an adapter at wiring time.
type Sink interface {
	// CreateLead persists a fully-formed lead.
	CreateLead(ctx context.Context, lead *Lead) error
}

// Lead is a local representation of a CRM lead. It carries the data
// extracted from a finished conversation plus enough identifiers to
// trace the lead back to its source thread.
type Lead struct {
	TenantID string `json:"tenant_id"`

	Name   string `json:"name,omitempty"`
	Mobile string `json:"mobile,omitempty"`
	Email  string `json:"email,omitempty"`

	// Custom holds CRM-mapped answers that are not one of the
	// well-known fields above, keyed by CRM field name.
	Custom map[string]string `json:"custom,omitempty"`

	// Answers is the full question/answer transcript, keyed by
	// question text. Fields already promoted into Name, Mobile, Email
	// or Custom appear here too.
	Answers map[string]string `json:"answers,omitempty"`

	WorkflowID     id.WorkflowID     `json:"workflow_id"`
	ConversationID id.ConversationID `json:"conversation_id"`

	// Source tags where the lead came from, e.g. "whatsapp".
	Source string `json:"source,omitempty"`

	// Partial marks leads built from abandoned conversations.
	Partial bool `json:"partial,omitempty"`

	CapturedAt time.Time `json:"captured_at"`
}

// SinkFunc is an adapter to use a plain function as a Sink.
//
// Example bridging to an HTTP CRM client:
//
//	crmhook.SinkFunc(func(ctx context.Context, lead *crmhook.Lead) error {
//	    return crmClient.Leads.Create(ctx, lead.TenantID, toCreateRequest(lead))
//	})
type SinkFunc func(ctx context.Context, lead *Lead) error

func (f SinkFunc) CreateLead(ctx context.Context, lead *Lead) error {
	return f(ctx, lead)
}

// Extension bridges conversation lifecycle events to a CRM backend.
// Every completed conversation becomes a lead; abandoned conversations
// become partial leads when enabled and a mobile number was captured.
type Extension struct {
	sink    Sink
	source  string
	partial bool
	logger  *slog.Logger
}

// New creates an Extension that sends leads through the provided Sink.
func New(s Sink, opts ...Option) *Extension {
	e := &Extension{
		sink:   s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "crm-hook" }

// OnConversationCompleted implements ext.ConversationCompleted.
func (e *Extension) OnConversationCompleted(ctx context.Context, c *conversation.Conversation) error {
	return e.send(ctx, buildLead(c, e.source, false))
}

// OnConversationAbandoned implements ext.ConversationAbandoned.
// Abandoned conversations only produce a lead when partial leads are
// enabled and the thread got far enough to capture a mobile number.
func (e *Extension) OnConversationAbandoned(ctx context.Context, c *conversation.Conversation) error {
	if !e.partial || c.Extracted.Mobile == "" {
		return nil
	}
	return e.send(ctx, buildLead(c, e.source, true))
}

// send pushes a lead into the sink. Sink failures are logged and
// swallowed so a flaky CRM never blocks conversation processing.
func (e *Extension) send(ctx context.Context, lead *Lead) error {
	if err := e.sink.CreateLead(ctx, lead); err != nil {
		e.logger.Warn("crm_hook: failed to create lead",
			"tenant_id", lead.TenantID,
			"conversation_id", lead.ConversationID.String(),
			"partial", lead.Partial,
			"error", err,
		)
	}
	return nil
}

func buildLead(c *conversation.Conversation, source string, partial bool) *Lead {
	lead := &Lead{
		TenantID:       c.TenantID,
		Name:           c.Extracted.Name,
		Mobile:         c.Extracted.Mobile,
		Email:          c.Extracted.Email,
		WorkflowID:     c.WorkflowID,
		ConversationID: c.ID,
		Source:         source,
		Partial:        partial,
		CapturedAt:     time.Now().UTC(),
	}
	if lead.Source == "" {
		lead.Source = c.Source
	}
	if len(c.Extracted.Custom) > 0 {
		lead.Custom = make(map[string]string, len(c.Extracted.Custom))
		for k, v := range c.Extracted.Custom {
			lead.Custom[k] = v
		}
	}
	if len(c.Answers) > 0 {
		lead.Answers = make(map[string]string, len(c.Answers))
		for _, a := range c.Answers {
			lead.Answers[a.QuestionText] = a.Value()
		}
	}
	return lead
}
