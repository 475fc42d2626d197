// Package ext defines the extension system for chatflow.
// Extensions are notified of lifecycle events (conversation started,
// progressed, completed, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/inbound"
	"github.com/enromatics/chatflow/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Conversation lifecycle hooks
// ──────────────────────────────────────────────────

// ConversationStarted is called after a trigger matched and a new
// conversation was persisted.
type ConversationStarted interface {
	OnConversationStarted(ctx context.Context, c *conversation.Conversation, wf *workflow.Workflow) error
}

// ConversationProgressed is called after an answer was recorded and the
// conversation advanced to its next question.
type ConversationProgressed interface {
	OnConversationProgressed(ctx context.Context, c *conversation.Conversation, answer conversation.Answer) error
}

// ConversationCompleted is called after the final answer arrived. The
// conversation's extracted data is final; CRM extensions hook here.
type ConversationCompleted interface {
	OnConversationCompleted(ctx context.Context, c *conversation.Conversation) error
}

// ConversationAbandoned is called when a conversation is closed without
// completing, either superseded by a newer trigger or swept for
// idleness.
type ConversationAbandoned interface {
	OnConversationAbandoned(ctx context.Context, c *conversation.Conversation) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// MessageIgnored is called when an inbound message matched no trigger
// and belonged to no open conversation.
type MessageIgnored interface {
	OnMessageIgnored(ctx context.Context, msg *inbound.Message) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
