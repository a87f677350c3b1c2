// Package eval implements the permission decision procedure: a pure
// function from (principal, request, policy snapshot) to a Decision.
// For a fixed snapshot and fixed inputs the outcome is always the same;
// no clock or other ambient state participates.
package eval

import (
	"context"
	"fmt"

	"authcore"
	"authcore/policy"
)

// Decision reasons for the deny outcomes the evaluator distinguishes.
const (
	// ReasonNoGrant is returned when no role grant covers the request.
	ReasonNoGrant = "no matching grant"

	// ReasonPredicateFailed is returned when grants matched the resource
	// and action but every one had an unsatisfied attribute condition.
	ReasonPredicateFailed = "grant matched but attribute condition failed"
)

// Snapshots supplies the current policy snapshot. *policy.Store
// satisfies this.
type Snapshots interface {
	Snapshot() (*policy.Snapshot, error)
}

// Evaluator answers single permission checks against the current
// policy snapshot. Safe for concurrent use.
type Evaluator struct {
	store Snapshots
}

// New creates an Evaluator reading from the given snapshot provider.
func New(store Snapshots) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate decides one request. The error return is reserved for
// infrastructure failures (no snapshot available); policy denials are
// normal decisions, not errors.
func (e *Evaluator) Evaluate(ctx context.Context, principal authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error) {
	if err := ctx.Err(); err != nil {
		return authcore.DenyInternal(), err
	}
	snap, err := e.store.Snapshot()
	if err != nil {
		return authcore.DenyInternal(), err
	}
	return Check(snap, principal, req), nil
}

// Check is the pure decision function. All facts participating in the
// decision come in through the arguments.
//
// The resource's owning tenant is read from the request attribute
// "tenant"; when absent the resource is treated as belonging to the
// principal's own tenant. Unless a grant is tenant-global, a resource
// owned by a different tenant is denied regardless of role.
func Check(snap *policy.Snapshot, principal authcore.PrincipalContext, req authcore.PermissionRequest) authcore.Decision {
	resourceTenant, hasTenant := req.Attribute(authcore.ResourceTenantAttribute)
	crossTenant := hasTenant && resourceTenant != principal.TenantID

	matched := false
	tenantDenied := false
	for _, role := range principal.Roles {
		for _, grant := range snap.Grants(role) {
			if !grant.Matches(req.Resource, req.Action) {
				continue
			}
			matched = true
			if crossTenant && !grant.TenantGlobal {
				tenantDenied = true
				continue
			}
			if !predicatesSatisfied(grant, req) {
				continue
			}
			return authcore.Allow(fmt.Sprintf("granted by role %q (%s %s)", role, grant.Resource, grant.Action))
		}
	}

	switch {
	case !matched:
		return authcore.Deny(ReasonNoGrant)
	case tenantDenied:
		return authcore.Deny(fmt.Sprintf(
			"tenant mismatch: resource owned by tenant %q, principal belongs to tenant %q",
			resourceTenant, principal.TenantID,
		))
	default:
		return authcore.Deny(ReasonPredicateFailed)
	}
}

// predicatesSatisfied checks every attribute condition of the grant
// against the request attributes. A grant with no conditions is
// unconditionally satisfied.
func predicatesSatisfied(grant policy.Grant, req authcore.PermissionRequest) bool {
	for key, want := range grant.When {
		got, ok := req.Attribute(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}
