package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"authcore"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SecretKey = "test-secret-key-for-hs256"
	return cfg
}

func testRegistry(t *testing.T) *memoryRegistry {
	t.Helper()
	registry := NewMemoryRegistry()
	if err := registry.Register("course-service", "s3cret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return registry
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	service, err := NewService(testConfig(), testRegistry(t), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func TestIssueAndVerify_HS256(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueServiceToken(ctx, "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	if issued.ServiceID != "course-service" || issued.Token == "" {
		t.Fatalf("unexpected token: %+v", issued)
	}

	serviceID, err := service.VerifyServiceToken(ctx, issued.Token)
	if err != nil {
		t.Fatalf("VerifyServiceToken: %v", err)
	}
	if serviceID != "course-service" {
		t.Fatalf("serviceID = %q, want course-service", serviceID)
	}
}

func TestIssueServiceToken_Errors(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		secret  string
		wantErr error
	}{
		{name: "unknown service", id: "ghost-service", secret: "s3cret", wantErr: authcore.ErrUnknownService},
		{name: "wrong secret", id: "course-service", secret: "wrong", wantErr: authcore.ErrUnauthenticated},
		{name: "empty id", id: "", secret: "s3cret", wantErr: authcore.ErrInvalidRequest},
		{name: "empty secret", id: "course-service", secret: "", wantErr: authcore.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.IssueServiceToken(ctx, tt.id, tt.secret); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssueServiceToken_ExpiryFromClock(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := newTestService(t, WithClock(func() time.Time { return issuedAt }))

	issued, err := service.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	if !issued.IssuedAt.Equal(issuedAt) {
		t.Fatalf("IssuedAt = %v, want %v", issued.IssuedAt, issuedAt)
	}
	if want := issuedAt.Add(10 * time.Minute); !issued.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", issued.ExpiresAt, want)
	}
}

func TestVerifyServiceToken_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := newTestService(t, WithClock(func() time.Time { return now }))

	issued, err := service.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}

	// Advance past TTL plus clock skew.
	now = now.Add(11 * time.Minute)
	if _, err := service.VerifyServiceToken(context.Background(), issued.Token); !errors.Is(err, authcore.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyServiceToken_WithinClockSkew(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := newTestService(t, WithClock(func() time.Time { return now }))

	issued, err := service.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}

	// Just past TTL but inside the 30s skew allowance.
	now = now.Add(10*time.Minute + 15*time.Second)
	if _, err := service.VerifyServiceToken(context.Background(), issued.Token); err != nil {
		t.Fatalf("token within skew rejected: %v", err)
	}
}

func TestVerifyServiceToken_Tampered(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueServiceToken(ctx, "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}

	parts := strings.Split(issued.Token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := service.VerifyServiceToken(ctx, tampered); !errors.Is(err, authcore.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	if _, err := service.VerifyServiceToken(ctx, "not-a-token"); !errors.Is(err, authcore.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyServiceToken_WrongKey(t *testing.T) {
	issuer := newTestService(t)

	otherCfg := testConfig()
	otherCfg.SecretKey = "a-completely-different-key"
	verifier, err := NewService(otherCfg, testRegistry(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	issued, err := issuer.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	if _, err := verifier.VerifyServiceToken(context.Background(), issued.Token); !errors.Is(err, authcore.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

// fakeDenylist reports every token revoked once flipped, sidestepping
// the need to know the minted jti.
type fakeDenylist struct {
	revokeAll bool
	err       error
}

func (f *fakeDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revokeAll, nil
}

func TestVerifyServiceToken_Revoked(t *testing.T) {
	denylist := &fakeDenylist{}
	service := newTestService(t, WithDenylist(denylist))

	issued, err := service.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}

	if _, err := service.VerifyServiceToken(context.Background(), issued.Token); err != nil {
		t.Fatalf("unrevoked token rejected: %v", err)
	}

	denylist.revokeAll = true
	if _, err := service.VerifyServiceToken(context.Background(), issued.Token); !errors.Is(err, authcore.ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}
}

func TestVerifyServiceToken_DenylistFailureFailsClosed(t *testing.T) {
	denylist := &fakeDenylist{err: errors.New("redis down")}
	service := newTestService(t, WithDenylist(denylist))

	issued, err := service.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	if _, err := service.VerifyServiceToken(context.Background(), issued.Token); !errors.Is(err, authcore.ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}

func generateRSAKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block))
}

func TestIssueAndVerify_RS256(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = RS256
	cfg.PrivateKey = generateRSAKeyPEM(t)

	service, err := NewService(cfg, testRegistry(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	issued, err := service.IssueServiceToken(context.Background(), "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	serviceID, err := service.VerifyServiceToken(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("VerifyServiceToken: %v", err)
	}
	if serviceID != "course-service" {
		t.Fatalf("serviceID = %q", serviceID)
	}
}

func TestNewService_Invalid(t *testing.T) {
	if _, err := NewService(Config{}, NewMemoryRegistry()); err == nil {
		t.Fatalf("expected error for empty config")
	}
	if _, err := NewService(testConfig(), nil); err == nil {
		t.Fatalf("expected error for nil registry")
	}

	cfg := DefaultConfig()
	cfg.Algorithm = RS256
	cfg.PrivateKey = "not a pem key"
	if _, err := NewService(cfg, NewMemoryRegistry()); err == nil {
		t.Fatalf("expected error for malformed private key")
	}
}
