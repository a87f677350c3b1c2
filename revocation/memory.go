// Package revocation provides the token denylist collaborator: a
// narrow interface the token service consults so a leaked token can be
// killed before its natural expiry. Entries only need to live as long
// as the token they revoke.
package revocation

import (
	"context"
	"sync"
	"time"
)

// Denylist marks tokens as revoked and answers revocation lookups.
type Denylist interface {
	// Revoke marks a token id as revoked for at least ttl.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsRevoked reports whether the token id has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Memory is an in-process Denylist for single-instance deployments and
// tests.
type Memory struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // tokenID -> expiry of the entry
	now     func() time.Time
}

// MemoryOption configures a Memory denylist.
type MemoryOption func(*Memory)

// WithClock injects the time source used for entry expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory denylist.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Revoke implements Denylist.
func (m *Memory) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = m.now().Add(ttl)
	return nil
}

// IsRevoked implements Denylist. Expired entries are pruned lazily.
func (m *Memory) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	expiry, ok := m.revoked[tokenID]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if m.now().After(expiry) {
		m.mu.Lock()
		delete(m.revoked, tokenID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}
