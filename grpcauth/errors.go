package grpcauth

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authcore"
)

// gRPC interceptor-specific errors
var (
	// ErrMissingMetadata indicates no metadata was found in the context
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrMissingToken indicates no service token was provided
	ErrMissingToken = errors.New("missing service token")

	// ErrInvalidTokenFormat indicates the token format is invalid
	ErrInvalidTokenFormat = errors.New("invalid token format")
)

// defaultErrorHandler maps authentication errors to gRPC status errors.
func defaultErrorHandler(ctx context.Context, err error) error {
	return status.Error(CodeFromError(err), err.Error())
}

// CodeFromError maps an error to the gRPC code callers should see.
func CodeFromError(err error) codes.Code {
	switch authcore.Kind(err) {
	case authcore.KindUnauthenticated,
		authcore.KindUnknownService,
		authcore.KindTokenExpired,
		authcore.KindInvalidSignature,
		authcore.KindTokenRevoked:
		return codes.Unauthenticated
	case authcore.KindInvalidRequest:
		return codes.InvalidArgument
	case authcore.KindInternal:
		return codes.Internal
	}

	switch {
	case errors.Is(err, ErrMissingMetadata),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidTokenFormat):
		return codes.Unauthenticated
	default:
		return codes.Unauthenticated
	}
}
