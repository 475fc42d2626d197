package throttle

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-channel behaviour such as rate limiting and concurrency.
type Config struct {
	// ChannelIdentity is the receiving endpoint this config applies to
	// (must match the inbound message's ChannelIdentity field).
	ChannelIdentity string

	// MaxConcurrency limits how many messages from this channel may be
	// handled simultaneously. Zero means no channel-specific limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained messages per second admitted
	// from this channel. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// channelState tracks runtime state for a single channel.
type channelState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-channel and per-tenant rate limiting and
// concurrency. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	channels map[string]*channelState
	tenants  map[string]*tenantState
}

// NewManager creates a Manager with the given channel configurations.
// Channels not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		channels: make(map[string]*channelState, len(configs)),
		tenants:  make(map[string]*tenantState),
	}
	for _, cfg := range configs {
		m.channels[cfg.ChannelIdentity] = newChannelState(cfg)
	}
	return m
}

func newChannelState(cfg Config) *channelState {
	return &channelState{
		config:  cfg,
		limiter: newLimiter(cfg.RateLimit, cfg.RateBurst),
	}
}

// newLimiter builds a token bucket, defaulting the burst to 1. Returns
// nil when rate limiting is disabled.
func newLimiter(rateLimit float64, burst int) *rate.Limiter {
	if rateLimit <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rateLimit), burst)
}

// Acquire checks rate limits and concurrency for the given channel and
// tenant. If the message is allowed to proceed it increments the active
// counter and returns true. The caller MUST call Release when handling
// completes.
func (m *Manager) Acquire(channelIdentity, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check channel-level constraints.
	cs := m.channels[channelIdentity]
	if cs != nil {
		if cs.limiter != nil && !cs.limiter.Allow() {
			return false
		}
		if cs.config.MaxConcurrency > 0 && cs.active >= cs.config.MaxConcurrency {
			return false
		}
	}

	// Check tenant-level constraints.
	if tenantID != "" {
		ts := m.tenants[tenantKey(channelIdentity, tenantID)]
		if ts != nil {
			if ts.limiter != nil && !ts.limiter.Allow() {
				return false
			}
			if ts.maxConcurrency > 0 && ts.active >= ts.maxConcurrency {
				return false
			}
			ts.active++
		}
	}

	// Increment channel active count.
	if cs != nil {
		cs.active++
	}

	return true
}

// Release decrements the active message count for the channel and tenant.
func (m *Manager) Release(channelIdentity, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cs := m.channels[channelIdentity]; cs != nil && cs.active > 0 {
		cs.active--
	}

	if tenantID != "" {
		if ts := m.tenants[tenantKey(channelIdentity, tenantID)]; ts != nil && ts.active > 0 {
			ts.active--
		}
	}
}

// SetChannelConfig dynamically updates (or creates) a channel configuration.
func (m *Manager) SetChannelConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.channels[cfg.ChannelIdentity]
	cs := newChannelState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		cs.active = existing.active
	}
	m.channels[cfg.ChannelIdentity] = cs
}

// ActiveCount returns the current number of in-flight messages for a channel.
func (m *Manager) ActiveCount(channelIdentity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs := m.channels[channelIdentity]; cs != nil {
		return cs.active
	}
	return 0
}
