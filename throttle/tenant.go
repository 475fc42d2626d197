package throttle

import (
	"fmt"

	"golang.org/x/time/rate"
)

// TenantConfig defines rate limits and concurrency for a specific
// tenant on a specific channel.
type TenantConfig struct {
	// ChannelIdentity is the channel this config applies to.
	ChannelIdentity string

	// TenantID is the tenant identifier.
	TenantID string

	// RateLimit is the sustained messages per second for this tenant.
	RateLimit float64

	// RateBurst is the burst size for the tenant's rate limiter.
	RateBurst int

	// MaxConcurrency limits simultaneous in-flight messages for this
	// tenant on this channel. Zero means no tenant-specific limit.
	MaxConcurrency int
}

// tenantState tracks runtime state for a single channel+tenant pair.
type tenantState struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

// tenantKey builds the map key for a channel+tenant pair.
func tenantKey(channelIdentity, tenantID string) string {
	return fmt.Sprintf("%s:%s", channelIdentity, tenantID)
}

// SetTenantConfig configures rate limits and concurrency for a specific
// tenant on a specific channel. Calling this multiple times for the
// same channel+tenant replaces the previous configuration.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenantKey(cfg.ChannelIdentity, cfg.TenantID)
	existing := m.tenants[key]

	ts := &tenantState{
		maxConcurrency: cfg.MaxConcurrency,
		limiter:        newLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ts.active = existing.active
	}
	m.tenants[key] = ts
}

// TenantActiveCount returns the current number of in-flight messages
// for a channel+tenant pair.
func (m *Manager) TenantActiveCount(channelIdentity, tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.tenants[tenantKey(channelIdentity, tenantID)]; ts != nil {
		return ts.active
	}
	return 0
}
