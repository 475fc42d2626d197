package chatflow

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("chatflow: no store configured")
	ErrStoreClosed = errors.New("chatflow: store closed")

	// Not found errors.
	ErrWorkflowNotFound     = errors.New("chatflow: workflow not found")
	ErrConversationNotFound = errors.New("chatflow: conversation not found")
	ErrRouteNotFound        = errors.New("chatflow: no tenant route for channel identity")

	// Conflict errors.
	ErrVersionConflict           = errors.New("chatflow: conversation modified concurrently")
	ErrConversationAlreadyExists = errors.New("chatflow: conversation already exists")
	ErrWorkflowAlreadyExists     = errors.New("chatflow: workflow already exists")

	// State errors.
	ErrConversationClosed = errors.New("chatflow: conversation is in a terminal state")
)
