package authcore

import (
	"fmt"
	"time"
)

// PrincipalContext identifies the actor a permission check is performed
// for. It is built per request from upstream-verified claims and never
// persisted. Role order is irrelevant.
type PrincipalContext struct {
	UserID   string   `json:"user_id"`
	Roles    []string `json:"roles,omitempty"`
	TenantID string   `json:"tenant_id"`
}

// HasRole checks if the principal holds a specific role.
func (p PrincipalContext) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Validate rejects principal contexts that must not reach the evaluator.
func (p PrincipalContext) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidRequest)
	}
	if p.TenantID == "" {
		return fmt.Errorf("%w: missing tenant id", ErrInvalidRequest)
	}
	if len(p.Roles) == 0 {
		return fmt.Errorf("%w: principal has no roles", ErrInvalidRequest)
	}
	return nil
}

// PermissionRequest is a single (resource, action, attributes) tuple to
// evaluate. Attributes carry request-scoped facts about the resource;
// the well-known key "tenant" names the tenant that owns the resource.
type PermissionRequest struct {
	Resource   string            `json:"resource"`
	Action     string            `json:"action"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate rejects malformed requests before evaluation.
func (r PermissionRequest) Validate() error {
	if r.Resource == "" {
		return fmt.Errorf("%w: missing resource", ErrInvalidRequest)
	}
	if r.Action == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidRequest)
	}
	return nil
}

// Attribute returns the named request attribute, if set.
func (r PermissionRequest) Attribute(key string) (string, bool) {
	v, ok := r.Attributes[key]
	return v, ok
}

// ResourceTenantAttribute is the request attribute naming the tenant
// that owns the resource under check. When absent, the resource is
// treated as belonging to the principal's own tenant.
const ResourceTenantAttribute = "tenant"

// ReasonInternalError is the decision reason used when evaluating a
// request failed for infrastructure reasons. The safe outcome is deny.
const ReasonInternalError = "internal error"

// Decision is the outcome of a permission check. Reason is always
// populated, on allow as well as deny, so every decision is auditable.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Allow constructs an allowing decision with the given reason.
func Allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

// Deny constructs a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DenyInternal is the uniform decision for a check that could not be
// evaluated. It never allows.
func DenyInternal() Decision {
	return Decision{Allowed: false, Reason: ReasonInternalError}
}

// ServiceToken is a short-lived signed credential proving one internal
// service's identity to another. It is immutable after issuance; invalid
// or expired tokens are rejected, not repaired.
type ServiceToken struct {
	ServiceID string    `json:"service_id"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiresIn returns the remaining lifetime relative to now.
func (t *ServiceToken) ExpiresIn(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

// ValidateBatch rejects malformed batch inputs item by item, reporting
// the index of the first offending item.
func ValidateBatch(principal PrincipalContext, reqs []PermissionRequest) error {
	if err := principal.Validate(); err != nil {
		return err
	}
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
