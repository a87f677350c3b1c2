package authcore

import "errors"

// Common authcore errors. Callers distinguish these kinds to decide
// between re-issuing a token, rejecting outright, or retrying.
var (
	// ErrUnauthenticated indicates the presented service secret does not match
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnknownService indicates the service id is not registered
	ErrUnknownService = errors.New("unknown service")

	// ErrTokenExpired indicates the token has expired; re-issue and retry
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidSignature indicates the token signature or shape is invalid
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenRevoked indicates the token was revoked before expiry
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidRequest indicates malformed input rejected before evaluation
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInternal indicates an infrastructure failure during evaluation
	ErrInternal = errors.New("internal error")
)

// ErrorKind classifies an error for transport mapping (HTTP status,
// gRPC code) without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnauthenticated
	KindUnknownService
	KindTokenExpired
	KindInvalidSignature
	KindTokenRevoked
	KindInvalidRequest
	KindInternal
)

// String returns the wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindUnknownService:
		return "UNKNOWN_SERVICE"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindInvalidSignature:
		return "INVALID_SIGNATURE"
	case KindTokenRevoked:
		return "TOKEN_REVOKED"
	case KindInvalidRequest:
		return "INVALID_REQUEST"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies err against the authcore sentinel errors.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrUnknownService):
		return KindUnknownService
	case errors.Is(err, ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrInvalidSignature):
		return KindInvalidSignature
	case errors.Is(err, ErrTokenRevoked):
		return KindTokenRevoked
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrInternal):
		return KindInternal
	default:
		return KindUnknown
	}
}
