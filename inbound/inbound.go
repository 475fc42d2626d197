// Package inbound defines the channel-facing boundary: the normalized
// inbound message, the outbound reply, and the interfaces the engine
// needs to resolve channel routes and deliver replies. Channel adapters
// (WhatsApp, SMS, web chat) translate provider payloads into these
// types; nothing in the engine knows provider wire formats.
package inbound

import (
	"context"
	"time"
)

// MessageType classifies the payload of an inbound message. Only text
// messages participate in trigger matching and conversation
// progression; everything else passes through untouched.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeAudio    MessageType = "audio"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
	TypeLocation MessageType = "location"
	TypeContact  MessageType = "contact"
	TypeUnknown  MessageType = "unknown"
)

// Message is one normalized inbound message from any channel.
type Message struct {
	// ChannelIdentity names the receiving endpoint, for example a
	// WhatsApp business phone number id. The resolver maps it to a
	// tenant.
	ChannelIdentity string `json:"channel_identity"`

	// TenantID is filled in by the dispatcher after route resolution.
	// Adapters leave it empty.
	TenantID string `json:"tenant_id,omitempty"`

	SenderAddress     string `json:"sender_address"`
	SenderProfileName string `json:"sender_profile_name,omitempty"`

	Type MessageType `json:"type"`
	Text string      `json:"text,omitempty"`

	// ProviderMessageID is the channel provider's message id, used for
	// duplicate-delivery detection. Empty when the provider sends none.
	ProviderMessageID string `json:"provider_message_id,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Reply is one outbound message the engine asks the channel to send.
type Reply struct {
	ChannelIdentity string `json:"channel_identity"`
	To              string `json:"to"`
	Text            string `json:"text"`
}

// Route is the resolved binding of a channel identity to a tenant.
type Route struct {
	TenantID        string `json:"tenant_id"`
	ChannelIdentity string `json:"channel_identity"`
	Enabled         bool   `json:"enabled"`
}

// Resolver maps a channel identity to its tenant route. Returns
// chatflow.ErrRouteNotFound when no tenant owns the identity.
type Resolver interface {
	Resolve(ctx context.Context, channelIdentity string) (*Route, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, channelIdentity string) (*Route, error)

func (f ResolverFunc) Resolve(ctx context.Context, channelIdentity string) (*Route, error) {
	return f(ctx, channelIdentity)
}

// Deliverer sends replies back out through a channel. Implementations
// wrap provider send APIs; delivery failures surface as errors but
// never roll back conversation state already persisted.
type Deliverer interface {
	Deliver(ctx context.Context, reply *Reply) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, reply *Reply) error

func (f DelivererFunc) Deliver(ctx context.Context, reply *Reply) error {
	return f(ctx, reply)
}
