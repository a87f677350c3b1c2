// Package policy holds the versioned, read-only view of role→permission
// grants the evaluator consults. A Snapshot is immutable once built;
// policy updates publish a whole new Snapshot through a Store so that
// concurrent readers never observe a half-updated rule set.
package policy

import "strings"

// Grant binds a role to an allowed (resource pattern, action) pair,
// optionally conditioned on request attributes.
//
// Resource patterns are matched exactly, except for a trailing "*",
// which matches any suffix ("assignment:*" covers "assignment:123"),
// and the bare "*", which matches every resource. Actions match exactly
// or via the bare "*".
type Grant struct {
	// Resource is the resource pattern the grant covers.
	Resource string

	// Action is the action the grant covers.
	Action string

	// When lists attribute conditions: every key must be present in the
	// request attributes with exactly the given value for the grant to
	// be satisfied. A grant with an empty When is unconditional once
	// resource and action match.
	When map[string]string

	// TenantGlobal exempts the grant from tenant isolation: it applies
	// to resources of any tenant, not only the principal's own.
	TenantGlobal bool
}

// MatchesResource reports whether the grant's resource pattern covers
// the given resource.
func (g Grant) MatchesResource(resource string) bool {
	if g.Resource == "*" {
		return true
	}
	if strings.HasSuffix(g.Resource, "*") {
		return strings.HasPrefix(resource, g.Resource[:len(g.Resource)-1])
	}
	return g.Resource == resource
}

// MatchesAction reports whether the grant covers the given action.
func (g Grant) MatchesAction(action string) bool {
	return g.Action == "*" || g.Action == action
}

// Matches reports whether the grant covers the (resource, action) pair.
func (g Grant) Matches(resource, action string) bool {
	return g.MatchesResource(resource) && g.MatchesAction(action)
}

// clone returns a deep copy so snapshot contents cannot be mutated
// through the input slices after construction.
func (g Grant) clone() Grant {
	out := Grant{
		Resource:     g.Resource,
		Action:       g.Action,
		TenantGlobal: g.TenantGlobal,
	}
	if len(g.When) > 0 {
		out.When = make(map[string]string, len(g.When))
		for k, v := range g.When {
			out.When[k] = v
		}
	}
	return out
}

// Snapshot is an immutable, internally consistent set of role grants.
// All reads during a single evaluation go against one Snapshot, so a
// decision is always traceable to one policy version.
type Snapshot struct {
	version string
	grants  map[string][]Grant // role -> grants
}

// NewSnapshot builds a Snapshot from role→grants assignments. The input
// is deep-copied; the caller may reuse or mutate it afterwards.
func NewSnapshot(version string, policies map[string][]Grant) *Snapshot {
	grants := make(map[string][]Grant, len(policies))
	for role, gs := range policies {
		copied := make([]Grant, 0, len(gs))
		for _, g := range gs {
			copied = append(copied, g.clone())
		}
		grants[role] = copied
	}
	return &Snapshot{version: version, grants: grants}
}

// Version identifies the policy revision this snapshot was built from.
func (s *Snapshot) Version() string {
	return s.version
}

// Grants returns the grants assigned to a role. The returned slice must
// not be modified.
func (s *Snapshot) Grants(role string) []Grant {
	return s.grants[role]
}

// Roles returns the number of roles with at least one grant.
func (s *Snapshot) Roles() int {
	return len(s.grants)
}
