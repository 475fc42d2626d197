// Package store defines the aggregate persistence interface.
//
// Each subsystem (workflow, conversation) defines its own store
// interface. The composite [Store] composes them all. A single backend
// need only implement Store to satisfy every subsystem's persistence
// contract.
//
// The composite interface:
//
//	type Store interface {
//	    workflow.Store
//	    conversation.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory — in-memory store for development and testing
//   - store/mongo — MongoDB backend using mongo-driver/v2
//   - store/postgres — PostgreSQL backend using pgx/v5
//   - store/redis — Redis backend using go-redis/v9
//
// # Usage
//
//	import "github.com/enromatics/chatflow/store/mongo"
//
//	s, err := mongo.New(ctx, "mongodb://localhost:27017", "chatflow")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	a, err := chatflow.New(chatflow.WithStore(s))
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema (indexes
// for mongo and redis, tables for postgres):
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Write Semantics
//
// Every backend implements the same conversation write contract:
// CreateConversation fails on a taken id, and UpdateConversation is a
// compare-and-set conditioned on the version the caller read. The
// engine relies on this to linearize concurrent writers across
// processes.
package store
