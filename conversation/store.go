package conversation

import (
	"context"
	"time"

	"github.com/enromatics/chatflow/id"
)

// StatusCount is one row of a per-workflow status breakdown.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// Store is the conversation persistence interface. Backends compose it
// with the other subsystem stores into a single storage implementation.
type Store interface {
	// GetConversation fetches a conversation by id. Returns
	// chatflow.ErrConversationNotFound when absent.
	GetConversation(ctx context.Context, conversationID id.ConversationID) (*Conversation, error)

	// GetOpen fetches the single open (triggered or in_progress)
	// conversation for a thread key. Returns
	// chatflow.ErrConversationNotFound when none is open.
	GetOpen(ctx context.Context, key string) (*Conversation, error)

	// CreateConversation persists a new conversation. Returns
	// chatflow.ErrConversationAlreadyExists when the id is taken, or
	// when c is open and another open conversation already holds its
	// thread key.
	CreateConversation(ctx context.Context, c *Conversation) error

	// UpdateConversation persists c conditioned on the version the caller
	// read: the write succeeds only if the stored version still equals
	// c.Version, and the stored version is bumped by one. On success
	// c.Version carries the new value. Returns chatflow.ErrVersionConflict
	// when another writer got there first, so callers re-read and retry.
	UpdateConversation(ctx context.Context, c *Conversation) error

	// ListIdleBefore returns up to limit open conversations whose last
	// update predates cutoff, oldest first. Used by the idle sweeper.
	ListIdleBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Conversation, error)

	// CountByStatus returns the status breakdown for one workflow.
	CountByStatus(ctx context.Context, tenantID string, workflowID id.WorkflowID) ([]StatusCount, error)
}
