package chatflow

import "time"

// Config holds configuration for the Automator.
type Config struct {
	// WriteRetryLimit is the maximum number of attempts for a conversation
	// write that fails with a version conflict before the error propagates.
	WriteRetryLimit int

	// IdleThreshold is how long an open conversation may go without an
	// inbound answer before a sweep marks it abandoned. Zero disables
	// idle abandonment; conversations then stay open until superseded
	// by a new trigger for the same sender.
	IdleThreshold time.Duration

	// HandleTimeout bounds how long a single inbound message may take to
	// process, including storage round-trips. Zero disables the deadline.
	HandleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteRetryLimit: 3,
		IdleThreshold:   0,
		HandleTimeout:   15 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
