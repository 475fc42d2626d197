package ext

import (
	"context"
	"log/slog"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/inbound"
	"github.com/enromatics/chatflow/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type conversationStartedEntry struct {
	name string
	hook ConversationStarted
}

type conversationProgressedEntry struct {
	name string
	hook ConversationProgressed
}

type conversationCompletedEntry struct {
	name string
	hook ConversationCompleted
}

type conversationAbandonedEntry struct {
	name string
	hook ConversationAbandoned
}

type messageIgnoredEntry struct {
	name string
	hook MessageIgnored
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	conversationStarted    []conversationStartedEntry
	conversationProgressed []conversationProgressedEntry
	conversationCompleted  []conversationCompletedEntry
	conversationAbandoned  []conversationAbandonedEntry
	messageIgnored         []messageIgnoredEntry
	shutdown               []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ConversationStarted); ok {
		r.conversationStarted = append(r.conversationStarted, conversationStartedEntry{name, h})
	}
	if h, ok := e.(ConversationProgressed); ok {
		r.conversationProgressed = append(r.conversationProgressed, conversationProgressedEntry{name, h})
	}
	if h, ok := e.(ConversationCompleted); ok {
		r.conversationCompleted = append(r.conversationCompleted, conversationCompletedEntry{name, h})
	}
	if h, ok := e.(ConversationAbandoned); ok {
		r.conversationAbandoned = append(r.conversationAbandoned, conversationAbandonedEntry{name, h})
	}
	if h, ok := e.(MessageIgnored); ok {
		r.messageIgnored = append(r.messageIgnored, messageIgnoredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Conversation event emitters
// ──────────────────────────────────────────────────

// EmitConversationStarted notifies all extensions that implement ConversationStarted.
func (r *Registry) EmitConversationStarted(ctx context.Context, c *conversation.Conversation, wf *workflow.Workflow) {
	for _, e := range r.conversationStarted {
		if err := e.hook.OnConversationStarted(ctx, c, wf); err != nil {
			r.logHookError("OnConversationStarted", e.name, err)
		}
	}
}

// EmitConversationProgressed notifies all extensions that implement ConversationProgressed.
func (r *Registry) EmitConversationProgressed(ctx context.Context, c *conversation.Conversation, answer conversation.Answer) {
	for _, e := range r.conversationProgressed {
		if err := e.hook.OnConversationProgressed(ctx, c, answer); err != nil {
			r.logHookError("OnConversationProgressed", e.name, err)
		}
	}
}

// EmitConversationCompleted notifies all extensions that implement ConversationCompleted.
func (r *Registry) EmitConversationCompleted(ctx context.Context, c *conversation.Conversation) {
	for _, e := range r.conversationCompleted {
		if err := e.hook.OnConversationCompleted(ctx, c); err != nil {
			r.logHookError("OnConversationCompleted", e.name, err)
		}
	}
}

// EmitConversationAbandoned notifies all extensions that implement ConversationAbandoned.
func (r *Registry) EmitConversationAbandoned(ctx context.Context, c *conversation.Conversation) {
	for _, e := range r.conversationAbandoned {
		if err := e.hook.OnConversationAbandoned(ctx, c); err != nil {
			r.logHookError("OnConversationAbandoned", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitMessageIgnored notifies all extensions that implement MessageIgnored.
func (r *Registry) EmitMessageIgnored(ctx context.Context, msg *inbound.Message) {
	for _, e := range r.messageIgnored {
		if err := e.hook.OnMessageIgnored(ctx, msg); err != nil {
			r.logHookError("OnMessageIgnored", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
