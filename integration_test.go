package authcore_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"authcore"
	"authcore/engine"
	"authcore/policy"
	"authcore/revocation"
	"authcore/token"
)

// newPlatform wires a full service the way the daemon does: token
// service with an in-memory registry and denylist, a policy store with
// a published snapshot, and the engine on top.
func newPlatform(t *testing.T) (authcore.Service, *policy.Store, *revocation.Memory) {
	t.Helper()

	cfg := token.DefaultConfig()
	cfg.SecretKey = "integration-test-key"
	registry := token.NewMemoryRegistry()
	if err := registry.Register("course-service", "s3cret"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	denylist := revocation.NewMemory()
	tokens, err := token.NewService(cfg, registry, token.WithDenylist(denylist))
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}

	store := policy.NewStore(policy.NewSnapshot("v1", map[string][]policy.Grant{
		"instructor": {
			{Resource: "assignment:*", Action: "grade"},
			{Resource: "course:*", Action: "read"},
		},
		"student": {
			{Resource: "assignment:*", Action: "read", When: map[string]string{"visibility": "published"}},
		},
	}))

	service, err := engine.New(engine.Options{Tokens: tokens, Store: store})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return service, store, denylist
}

func TestServiceTokenLifecycle(t *testing.T) {
	service, _, _ := newPlatform(t)
	ctx := context.Background()

	issued, err := service.IssueServiceToken(ctx, "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	if remaining := issued.ExpiresIn(time.Now()); remaining <= 0 || remaining > 10*time.Minute {
		t.Fatalf("unexpected token lifetime: %v", remaining)
	}

	serviceID, err := service.VerifyServiceToken(ctx, issued.Token)
	if err != nil {
		t.Fatalf("VerifyServiceToken: %v", err)
	}
	if serviceID != "course-service" {
		t.Fatalf("serviceID = %q", serviceID)
	}

	if _, err := service.IssueServiceToken(ctx, "course-service", "wrong"); !errors.Is(err, authcore.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if _, err := service.IssueServiceToken(ctx, "ghost-service", "s3cret"); !errors.Is(err, authcore.ErrUnknownService) {
		t.Fatalf("err = %v, want ErrUnknownService", err)
	}
}

func TestPermissionCheckFlow(t *testing.T) {
	service, _, _ := newPlatform(t)
	ctx := context.Background()

	instructor := authcore.PrincipalContext{UserID: "teach-1", Roles: []string{"instructor"}, TenantID: "T1"}
	student := authcore.PrincipalContext{UserID: "stud-1", Roles: []string{"student"}, TenantID: "T1"}

	if d := service.Check(ctx, instructor, authcore.PermissionRequest{Resource: "assignment:42", Action: "grade"}); !d.Allowed {
		t.Fatalf("instructor grading denied: %+v", d)
	}
	if d := service.Check(ctx, student, authcore.PermissionRequest{Resource: "assignment:42", Action: "grade"}); d.Allowed {
		t.Fatalf("student grading allowed: %+v", d)
	}

	// Cross-tenant access is denied even for a matching role.
	crossTenant := authcore.PermissionRequest{
		Resource:   "assignment:42",
		Action:     "grade",
		Attributes: map[string]string{authcore.ResourceTenantAttribute: "T2"},
	}
	if d := service.Check(ctx, instructor, crossTenant); d.Allowed {
		t.Fatalf("cross-tenant check allowed: %+v", d)
	}
}

func TestBatchCheckFlow(t *testing.T) {
	service, _, _ := newPlatform(t)
	ctx := context.Background()
	instructor := authcore.PrincipalContext{UserID: "teach-1", Roles: []string{"instructor"}, TenantID: "T1"}

	reqs := []authcore.PermissionRequest{
		{Resource: "assignment:1", Action: "grade"},
		{Resource: "enrollment:1", Action: "write"},
		{Resource: "course:9", Action: "read"},
	}
	results, err := service.BatchCheck(ctx, instructor, reqs)
	if err != nil {
		t.Fatalf("BatchCheck: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(reqs))
	}
	if !results[0].Allowed || results[1].Allowed || !results[2].Allowed {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestPolicyReloadChangesDecisions(t *testing.T) {
	service, store, _ := newPlatform(t)
	ctx := context.Background()
	registrar := authcore.PrincipalContext{UserID: "reg-1", Roles: []string{"registrar"}, TenantID: "T1"}
	req := authcore.PermissionRequest{Resource: "enrollment:5", Action: "write"}

	if d := service.Check(ctx, registrar, req); d.Allowed {
		t.Fatalf("registrar allowed before the role exists: %+v", d)
	}

	store.Publish(policy.NewSnapshot("v2", map[string][]policy.Grant{
		"registrar": {{Resource: "enrollment:*", Action: "write"}},
	}))

	if d := service.Check(ctx, registrar, req); !d.Allowed {
		t.Fatalf("registrar denied after publish: %+v", d)
	}
}

// tokenID pulls the jti out of a signed token's payload.
func tokenID(t *testing.T, signed string) string {
	t.Helper()
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("malformed token: %q", signed)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	var claims struct {
		ID string `json:"jti"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("parsing claims: %v", err)
	}
	return claims.ID
}

func TestRevokedTokenRejected(t *testing.T) {
	service, _, denylist := newPlatform(t)
	ctx := context.Background()

	issued, err := service.IssueServiceToken(ctx, "course-service", "s3cret")
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}
	if _, err := service.VerifyServiceToken(ctx, issued.Token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	// An unrelated revocation leaves the token usable.
	if err := denylist.Revoke(ctx, "some-other-jti", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := service.VerifyServiceToken(ctx, issued.Token); err != nil {
		t.Fatalf("token rejected after unrelated revocation: %v", err)
	}

	if err := denylist.Revoke(ctx, tokenID(t, issued.Token), 10*time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := service.VerifyServiceToken(ctx, issued.Token); !errors.Is(err, authcore.ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}
}
