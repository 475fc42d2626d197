// Package store defines the aggregate persistence interface. Each
// subsystem (workflow, conversation) defines its own store interface.
// The composite Store composes them all. Backends: MongoDB, PostgreSQL,
// Redis, and Memory.
package store

import (
	"context"

	"github.com/enromatics/chatflow/conversation"
	"github.com/enromatics/chatflow/workflow"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (mongo, postgres, redis, memory) implements all of them.
type Store interface {
	workflow.Store
	conversation.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
