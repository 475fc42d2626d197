// Package chatflow provides a composable conversation automation engine
// for tenant-configured messaging channels. It matches inbound chat
// messages against trigger keywords and drives a per-sender question and
// answer state machine to completion.
//
// Chatflow is designed as a library, not a service. Import it, configure a
// store, and hand it inbound messages; it returns the reply text (if any)
// for your messaging client to deliver.
//
// # Quick Start
//
//	a, err := chatflow.New(
//	    chatflow.WithStore(memStore),
//	    chatflow.WithLogger(logger),
//	)
//	eng, err := engine.Build(a)
//	reply, err := eng.HandleMessage(ctx, msg)
//
// # Architecture
//
// Chatflow follows a composable store pattern where each subsystem
// (workflow, conversation) defines its own store interface. A single
// backend implements all of them. Backends: MongoDB, PostgreSQL, Redis,
// and Memory.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
//
// All mutations to a single conversation are linearized: the engine
// serializes handling per sender thread and conditions every write on the
// version it read, so duplicate or near-simultaneous deliveries for one
// sender never produce a lost update.
package chatflow
