package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// tokenType marks service tokens so end-user credentials can never be
// accepted on the service-to-service surface.
const tokenType = "service"

// serviceClaims is the JWT claim set carried by service tokens.
type serviceClaims struct {
	jwt.RegisteredClaims
	ServiceID string `json:"service_id"`
	TokenType string `json:"token_type"`
}

// valid reports whether the claim set describes a service token.
func (c *serviceClaims) valid() bool {
	return c.TokenType == tokenType && c.ServiceID != ""
}
