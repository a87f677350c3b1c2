package token

import (
	"errors"
	"time"
)

// Algorithm represents the signing algorithm for service tokens.
type Algorithm string

const (
	// HS256 uses HMAC with SHA-256
	HS256 Algorithm = "HS256"
	// RS256 uses RSA signature with SHA-256
	RS256 Algorithm = "RS256"
)

// Config holds the configuration for service token issuance and
// verification. The signing key is injected here and scoped to the
// Service's lifetime; it is never read from ambient state.
type Config struct {
	// SecretKey is the signing secret for HS256
	SecretKey string

	// PrivateKey is the RSA private key for RS256 (PEM format)
	PrivateKey string

	// PublicKey is the RSA public key for RS256 (PEM format, optional;
	// derived from the private key when empty)
	PublicKey string

	// Algorithm to use for signing (HS256 or RS256)
	Algorithm Algorithm

	// Issuer identifies the issuer of the token
	Issuer string

	// Audience identifies the recipients of the token
	Audience string

	// TokenTTL sets the lifetime of issued tokens. Deliberately short:
	// minutes, not hours, to bound the blast radius of a leaked token.
	TokenTTL time.Duration

	// ClockSkew allows for clock drift between services
	ClockSkew time.Duration
}

// DefaultConfig returns a default service token configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm: HS256,
		TokenTTL:  10 * time.Minute,
		ClockSkew: 30 * time.Second,
		Issuer:    "authcore",
		Audience:  "platform-services",
	}
}

// Validate validates the token configuration.
func (c *Config) Validate() error {
	if c.Algorithm == "" {
		return errors.New("algorithm is required")
	}

	if c.Algorithm != HS256 && c.Algorithm != RS256 {
		return errors.New("algorithm must be HS256 or RS256")
	}

	if c.Algorithm == HS256 && c.SecretKey == "" {
		return errors.New("secret key is required for HS256")
	}

	if c.Algorithm == RS256 && c.PrivateKey == "" {
		return errors.New("private key is required for RS256")
	}

	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}

	if c.ClockSkew < 0 {
		return errors.New("clock skew must not be negative")
	}

	return nil
}
