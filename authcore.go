// Package authcore is the central authorization decision point for the
// platform: it issues and verifies the short-lived service tokens that
// internal services use to call one another, and it answers permission
// checks ("may this principal perform this action on this resource"),
// singly or in positional batches.
package authcore

import "context"

// TokenIssuer mints signed service tokens for registered services.
type TokenIssuer interface {
	// IssueServiceToken validates the presented secret for serviceID and
	// returns a signed, time-bounded token identifying that service.
	IssueServiceToken(ctx context.Context, serviceID, serviceSecret string) (*ServiceToken, error)
}

// TokenVerifier checks signature, expiry and revocation of service tokens.
type TokenVerifier interface {
	// VerifyServiceToken returns the serviceID a valid token was issued to.
	VerifyServiceToken(ctx context.Context, token string) (string, error)
}

// Checker answers a single permission check. A Decision is always
// returned: policy denials and internal evaluation failures both surface
// as Allowed=false with a populated Reason, never as an error.
type Checker interface {
	Check(ctx context.Context, principal PrincipalContext, req PermissionRequest) Decision
}

// BatchChecker evaluates many requests sharing one principal context.
// The result slice has the same length and order as the input: result i
// answers request i. A failure evaluating one item denies that slot only.
type BatchChecker interface {
	// BatchCheck returns an error only when ctx is cancelled or the
	// deadline passes, in which case no partial results are returned.
	BatchCheck(ctx context.Context, principal PrincipalContext, reqs []PermissionRequest) ([]Decision, error)
}

// Service combines token issuance/verification and permission checking.
type Service interface {
	TokenIssuer
	TokenVerifier
	Checker
	BatchChecker
}

// composedService composes independent implementations into a Service.
type composedService struct {
	TokenIssuer
	TokenVerifier
	Checker
	BatchChecker
}

// NewService composes token and checking implementations into a Service.
// If any component is nil, the returned service will panic on the
// respective method calls.
func NewService(issuer TokenIssuer, verifier TokenVerifier, checker Checker, batch BatchChecker) Service {
	return &composedService{
		TokenIssuer:   issuer,
		TokenVerifier: verifier,
		Checker:       checker,
		BatchChecker:  batch,
	}
}
