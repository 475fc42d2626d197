package chatflow

import (
	"context"
	"log/slog"
	"time"
)

// Option configures an Automator.
type Option func(*Automator) error

// Storer is the minimal store interface held by the Automator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Automator is the central coordinator for conversation automation.
//
// Create one with New() and functional options, then wire the engine
// with engine.Build(). The Automator holds the store and logger via
// internal interfaces to avoid import cycles.
type Automator struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
}

// New creates a new Automator with the given options.
func New(opts ...Option) (*Automator, error) {
	a := &Automator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Logger returns the automator's logger.
func (a *Automator) Logger() *slog.Logger { return a.logger }

// Store returns the automator's store.
func (a *Automator) Store() Storer { return a.store }

// Config returns a copy of the automator's configuration.
func (a *Automator) Config() Config { return a.config }

// SetExtensions sets the extension emitter (called by the engine layer).
func (a *Automator) SetExtensions(e extensionEmitter) { a.extensions = e }

// Close shuts the automator down: extensions are notified, then the
// store is closed.
func (a *Automator) Close(ctx context.Context) error {
	if a.extensions != nil {
		a.extensions.EmitShutdown(ctx)
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// WithStore sets the persistence backend for the automator.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(a *Automator) error {
		a.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the automator.
func WithLogger(l *slog.Logger) Option {
	return func(a *Automator) error {
		a.logger = l
		return nil
	}
}

// WithWriteRetryLimit sets how many times a conflicted conversation write
// is retried before giving up.
func WithWriteRetryLimit(n int) Option {
	return func(a *Automator) error {
		a.config.WriteRetryLimit = n
		return nil
	}
}

// WithIdleThreshold sets how long an open conversation may sit idle before
// SweepIdle abandons it.
func WithIdleThreshold(d time.Duration) Option {
	return func(a *Automator) error {
		a.config.IdleThreshold = d
		return nil
	}
}

// WithHandleTimeout bounds the processing time of a single inbound message.
func WithHandleTimeout(d time.Duration) Option {
	return func(a *Automator) error {
		a.config.HandleTimeout = d
		return nil
	}
}
