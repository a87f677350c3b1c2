package grpcauth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// ExtractBearerToken extracts a Bearer token from gRPC metadata.
// This is a standalone helper that can be used outside of interceptors.
func ExtractBearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingMetadata
	}

	authValues := md["authorization"]
	if len(authValues) == 0 {
		return "", ErrMissingToken
	}

	authValue := authValues[0]
	if len(authValue) < 7 || authValue[:7] != "Bearer " {
		return "", ErrInvalidTokenFormat
	}

	token := authValue[7:]
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}

// ChainUnaryInterceptors chains multiple unary interceptors together.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, next)
			}
		}

		return chained(ctx, req)
	}
}

// ChainStreamInterceptors chains multiple stream interceptors together.
func ChainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentSrv interface{}, currentSs grpc.ServerStream) error {
				return interceptor(currentSrv, currentSs, info, next)
			}
		}

		return chained(srv, ss)
	}
}

// OutgoingServiceToken attaches a service token to outgoing metadata,
// for clients calling another authcore-protected service.
func OutgoingServiceToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
