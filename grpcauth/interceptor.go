// Package grpcauth provides gRPC server interceptors that authenticate
// calling services by their authcore service tokens, for platform
// services that expose gRPC and embed authcore.
package grpcauth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"authcore"
)

// Interceptor handles gRPC service-to-service authentication.
type Interceptor struct {
	verifier authcore.TokenVerifier
	config   Config
}

// Config holds interceptor configuration.
type Config struct {
	// MetadataKey is the metadata key for token extraction (default: "authorization")
	MetadataKey string

	// TokenPrefix is the prefix for token extraction (default: "bearer ")
	TokenPrefix string

	// SkipMethods are full method names to skip authentication (e.g., ["/health.Health/Check"])
	SkipMethods []string

	// ErrorHandler maps authentication errors to gRPC status errors
	ErrorHandler func(ctx context.Context, err error) error
}

// DefaultConfig returns a default interceptor configuration.
func DefaultConfig() Config {
	return Config{
		MetadataKey:  "authorization",
		TokenPrefix:  "bearer ",
		SkipMethods:  []string{},
		ErrorHandler: defaultErrorHandler,
	}
}

// New creates a new gRPC interceptor with the given verifier and config.
func New(verifier authcore.TokenVerifier, config ...Config) *Interceptor {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return &Interceptor{
		verifier: verifier,
		config:   cfg,
	}
}

// UnaryAuthInterceptor returns a unary server interceptor that verifies
// the caller's service token and records the verified service identity
// on the context.
func (i *Interceptor) UnaryAuthInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if i.shouldSkip(info.FullMethod) {
			return handler(ctx, req)
		}

		serviceID, err := i.authenticate(ctx)
		if err != nil {
			return nil, i.config.ErrorHandler(ctx, err)
		}

		return handler(authcore.WithServiceID(ctx, serviceID), req)
	}
}

// StreamAuthInterceptor returns a stream server interceptor that
// verifies the caller's service token before the stream is handled.
func (i *Interceptor) StreamAuthInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if i.shouldSkip(info.FullMethod) {
			return handler(srv, ss)
		}

		serviceID, err := i.authenticate(ss.Context())
		if err != nil {
			return i.config.ErrorHandler(ss.Context(), err)
		}

		wrapped := &serverStream{
			ServerStream: ss,
			ctx:          authcore.WithServiceID(ss.Context(), serviceID),
		}
		return handler(srv, wrapped)
	}
}

// UnaryRequireService returns an interceptor allowing only the listed
// services through. Must be chained after UnaryAuthInterceptor.
func (i *Interceptor) UnaryRequireService(serviceIDs ...string) grpc.UnaryServerInterceptor {
	allowed := make(map[string]struct{}, len(serviceIDs))
	for _, id := range serviceIDs {
		allowed[id] = struct{}{}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		serviceID, ok := authcore.ServiceIDFromContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "no verified service in context")
		}
		if _, ok := allowed[serviceID]; !ok {
			return nil, status.Errorf(codes.PermissionDenied, "service %s not allowed", serviceID)
		}
		return handler(ctx, req)
	}
}

// WithAuth is a convenience function returning both auth interceptors.
func (i *Interceptor) WithAuth() (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	return i.UnaryAuthInterceptor(), i.StreamAuthInterceptor()
}

// authenticate extracts and verifies the bearer token from metadata.
func (i *Interceptor) authenticate(ctx context.Context) (string, error) {
	token, err := i.extractToken(ctx)
	if err != nil {
		return "", err
	}
	return i.verifier.VerifyServiceToken(ctx, token)
}

// extractToken pulls the bearer token from incoming metadata.
func (i *Interceptor) extractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingMetadata
	}

	values := md[i.config.MetadataKey]
	if len(values) == 0 {
		return "", ErrMissingToken
	}

	value := values[0]
	prefix := i.config.TokenPrefix
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", ErrInvalidTokenFormat
	}

	token := value[len(prefix):]
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// shouldSkip checks if authentication should be skipped for a method.
func (i *Interceptor) shouldSkip(fullMethod string) bool {
	for _, m := range i.config.SkipMethods {
		if m == fullMethod {
			return true
		}
	}
	return false
}

// serverStream overrides the stream context with the authenticated one.
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}
