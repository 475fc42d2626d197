// Package throttle enforces per-channel and per-tenant inbound message
// limits.
//
// Channels are the receiving endpoints messages arrive through (for
// example a WhatsApp business number). Each channel identity can carry
// a rate limit and a concurrency cap, and individual tenants can be
// capped tighter on top of that.
//
// # Per-Channel Configuration
//
// Use [Config] to set per-channel rate limits and concurrency caps:
//
//	throttle.Config{
//	    ChannelIdentity: "wa-business-1",
//	    MaxConcurrency:  20,    // max 20 messages handled at once
//	    RateLimit:       50,    // max 50 messages/s admitted
//	    RateBurst:       100,   // allow bursts up to 100
//	}
//
// Pass configs when building the engine:
//
//	engine.Build(a,
//	    engine.WithThrottle(
//	        throttle.Config{ChannelIdentity: "wa-business-1", RateLimit: 50, RateBurst: 100},
//	    ),
//	)
//
// # Manager
//
// [Manager] enforces per-channel and per-tenant limits at admission
// time. It uses a token-bucket rate limiter (golang.org/x/time/rate)
// and an active-count gate for concurrency limits.
//
//	m := throttle.NewManager(configs...)
//	if m.Acquire(channelIdentity, tenantID) {
//	    defer m.Release(channelIdentity, tenantID)
//	    // handle the message
//	}
//
// Channels without a [Config] have no limits.
package throttle
