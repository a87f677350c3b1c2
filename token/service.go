// Package token issues and verifies the signed, time-bounded tokens
// internal services present to one another. Tokens are stateless and
// self-describing; revocation before natural expiry is delegated to an
// optional external denylist collaborator.
package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"golang.org/x/crypto/bcrypt"

	"authcore"
)

// Denylist checks whether a token was revoked before its natural
// expiry. Lookup failures fail closed: the token is rejected.
type Denylist interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Service issues and verifies service tokens.
type Service struct {
	config     Config
	registry   Registry
	denylist   Denylist
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source. Defaults to time.Now; tests use
// this to drive expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDenylist attaches a revocation denylist consulted on Verify.
func WithDenylist(denylist Denylist) Option {
	return func(s *Service) { s.denylist = denylist }
}

// WithLogger attaches a logger for issuance and verification events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a token service with the given configuration and
// service registry.
func NewService(config Config, registry Registry, opts ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}

	service := &Service{
		config:   config,
		registry: registry,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}

	if config.Algorithm == RS256 {
		privateKey, err := parseRSAPrivateKey(config.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		service.privateKey = privateKey

		if config.PublicKey != "" {
			publicKey, err := parseRSAPublicKey(config.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
			}
			service.publicKey = publicKey
		} else {
			service.publicKey = &privateKey.PublicKey
		}
	}

	return service, nil
}

// IssueServiceToken validates the presented secret and mints a signed
// token for the service. The secret comparison is constant-time; a
// mismatch and an unknown service are reported as distinct errors.
func (s *Service) IssueServiceToken(ctx context.Context, serviceID, serviceSecret string) (*authcore.ServiceToken, error) {
	if serviceID == "" || serviceSecret == "" {
		return nil, fmt.Errorf("%w: missing service id or secret", authcore.ErrInvalidRequest)
	}

	hash, err := s.registry.SecretHash(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(serviceSecret)); err != nil {
		s.logger.Warn("service token issuance rejected",
			zap.String("service_id", serviceID),
		)
		return nil, fmt.Errorf("%w: secret mismatch for %s", authcore.ErrUnauthenticated, serviceID)
	}

	now := s.now()
	expiresAt := now.Add(s.config.TokenTTL)
	claims := &serviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   serviceID,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		ServiceID: serviceID,
		TokenType: tokenType,
	}

	signed, err := s.sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Debug("service token issued",
		zap.String("service_id", serviceID),
		zap.Time("expires_at", expiresAt),
	)

	return &authcore.ServiceToken{
		ServiceID: serviceID,
		Token:     signed,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyServiceToken verifies signature, expiry and revocation and
// returns the serviceID the token was issued to. Expiry and signature
// failures are distinct so callers can tell "re-issue and retry" from
// "reject outright".
func (s *Service) VerifyServiceToken(ctx context.Context, tokenString string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.config.ClockSkew),
	)

	parsed, err := parser.ParseWithClaims(tokenString, &serviceClaims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", authcore.ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", authcore.ErrInvalidSignature, err)
	}

	claims, ok := parsed.Claims.(*serviceClaims)
	if !ok || !parsed.Valid || !claims.valid() {
		return "", fmt.Errorf("%w: not a service token", authcore.ErrInvalidSignature)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return "", fmt.Errorf("%w: denylist lookup: %v", authcore.ErrInternal, err)
		}
		if revoked {
			return "", fmt.Errorf("%w: %s", authcore.ErrTokenRevoked, claims.ID)
		}
	}

	return claims.ServiceID, nil
}

// sign creates a signed JWT for the given claims.
func (s *Service) sign(claims *serviceClaims) (string, error) {
	var tok *jwt.Token
	var signingKey interface{}

	switch s.config.Algorithm {
	case HS256:
		tok = jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signingKey = []byte(s.config.SecretKey)
	case RS256:
		tok = jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		signingKey = s.privateKey
	default:
		return "", fmt.Errorf("unsupported algorithm: %s", s.config.Algorithm)
	}

	return tok.SignedString(signingKey)
}

// keyFunc returns the key for token validation.
func (s *Service) keyFunc(token *jwt.Token) (interface{}, error) {
	switch s.config.Algorithm {
	case HS256:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.SecretKey), nil
	case RS256:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", s.config.Algorithm)
	}
}
