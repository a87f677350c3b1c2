package token

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"authcore"
)

// Registry resolves a registered service to its stored secret hash.
// Secrets are kept as bcrypt hashes; plaintext secrets exist only in
// the issuance request.
type Registry interface {
	// SecretHash returns the bcrypt hash of the service's secret.
	// Fails with authcore.ErrUnknownService for unregistered ids.
	SecretHash(ctx context.Context, serviceID string) ([]byte, error)
}

// memoryRegistry is an in-memory Registry for daemons that configure
// their service roster at startup.
type memoryRegistry struct {
	mu      sync.RWMutex
	secrets map[string][]byte // serviceID -> bcrypt hash
}

// NewMemoryRegistry creates an empty in-memory service registry.
func NewMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{secrets: make(map[string][]byte)}
}

// Register stores the bcrypt hash of a service's secret, replacing any
// previous registration.
func (r *memoryRegistry) Register(serviceID, secret string) error {
	if serviceID == "" {
		return fmt.Errorf("%w: missing service id", authcore.ErrInvalidRequest)
	}
	if secret == "" {
		return fmt.Errorf("%w: missing service secret", authcore.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing service secret: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[serviceID] = hash
	return nil
}

// SecretHash implements Registry.
func (r *memoryRegistry) SecretHash(ctx context.Context, serviceID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hash, ok := r.secrets[serviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", authcore.ErrUnknownService, serviceID)
	}
	return hash, nil
}
