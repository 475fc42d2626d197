package crmhook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithSource overrides the lead source tag. By default each lead
// inherits the source recorded on its conversation.
//
// Example:
//
//	crmhook.New(sink, crmhook.WithSource("whatsapp"))
func WithSource(source string) Option {
	return func(e *Extension) { e.source = source }
}

// WithPartialLeads enables lead creation for abandoned conversations
// that captured a mobile number before going quiet. Disabled by
// default; only completed conversations produce leads.
func WithPartialLeads() Option {
	return func(e *Extension) { e.partial = true }
}

// WithLogger sets a custom logger for the extension.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
