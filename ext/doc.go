// Package ext defines the extension system for chatflow.
//
// Extensions are notified of conversation lifecycle events and can
// react to them — recording metrics, pushing leads into a CRM, writing
// audit logs, etc. Each lifecycle hook is a separate interface so
// extensions opt in only to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnConversationCompleted(ctx context.Context, c *conversation.Conversation) error {
//	    log.Printf("conversation %s completed with %d answers", c.ID, len(c.Answers))
//	    return nil
//	}
//
// # Conversation Lifecycle Hooks
//
//   - [ConversationStarted] — a trigger matched and a conversation was created
//   - [ConversationProgressed] — an answer was recorded and the next question issued
//   - [ConversationCompleted] — the last answer arrived; extracted data is final
//   - [ConversationAbandoned] — a newer trigger or the idle sweeper closed the conversation
//
// # Other Hooks
//
//   - [MessageIgnored] — an inbound message matched nothing and was dropped
//   - [Shutdown] — the automator is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
