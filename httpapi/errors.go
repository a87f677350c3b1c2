package httpapi

import "errors"

// HTTP auth errors
var (
	// errMissingToken indicates no service token was provided
	errMissingToken = errors.New("missing service token")

	// errInvalidTokenFormat indicates the Authorization header is malformed
	errInvalidTokenFormat = errors.New("invalid authorization header format")
)
