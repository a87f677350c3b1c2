package authcore

import "context"

// contextKey is an unexported type for keys defined in this package.
type contextKey string

const (
	principalContextKey contextKey = "authcore.principal"
	serviceContextKey   contextKey = "authcore.service"
)

// WithPrincipal adds a principal context to the request context.
func WithPrincipal(ctx context.Context, principal PrincipalContext) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the principal from the context.
func PrincipalFromContext(ctx context.Context) (PrincipalContext, bool) {
	principal, ok := ctx.Value(principalContextKey).(PrincipalContext)
	return principal, ok
}

// MustPrincipalFromContext extracts the principal from context or panics.
func MustPrincipalFromContext(ctx context.Context) PrincipalContext {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("no principal in context")
	}
	return principal
}

// WithServiceID records the verified calling service on the context.
// Set by the transport layers after VerifyServiceToken succeeds.
func WithServiceID(ctx context.Context, serviceID string) context.Context {
	return context.WithValue(ctx, serviceContextKey, serviceID)
}

// ServiceIDFromContext extracts the verified calling service, if any.
func ServiceIDFromContext(ctx context.Context) (string, bool) {
	serviceID, ok := ctx.Value(serviceContextKey).(string)
	return serviceID, ok && serviceID != ""
}

// IsServiceCall checks whether the context carries a verified service
// identity.
func IsServiceCall(ctx context.Context) bool {
	_, ok := ServiceIDFromContext(ctx)
	return ok
}
