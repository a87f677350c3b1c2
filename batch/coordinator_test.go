package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"authcore"
)

func echoCheck(ctx context.Context, principal authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error) {
	return authcore.Allow("resource " + req.Resource), nil
}

func requests(n int) []authcore.PermissionRequest {
	reqs := make([]authcore.PermissionRequest, n)
	for i := range reqs {
		reqs[i] = authcore.PermissionRequest{Resource: fmt.Sprintf("assignment:%d", i), Action: "read"}
	}
	return reqs
}

func TestBatchCheck_PositionalResults(t *testing.T) {
	principal := authcore.PrincipalContext{UserID: "u1", Roles: []string{"student"}, TenantID: "T1"}

	for _, size := range []int{0, 1, 3, 50} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			c := New(echoCheck)
			results, err := c.BatchCheck(context.Background(), principal, requests(size))
			if err != nil {
				t.Fatalf("BatchCheck error: %v", err)
			}
			if len(results) != size {
				t.Fatalf("len(results) = %d, want %d", len(results), size)
			}
			for i, d := range results {
				want := fmt.Sprintf("assignment:%d", i)
				if !d.Allowed || !strings.Contains(d.Reason, want) {
					t.Fatalf("result %d = %+v, want allow mentioning %s", i, d, want)
				}
			}
		})
	}
}

func TestBatchCheck_ItemErrorIsolated(t *testing.T) {
	check := func(ctx context.Context, p authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error) {
		if req.Resource == "assignment:2" {
			return authcore.Decision{}, errors.New("store unavailable")
		}
		return authcore.Allow("ok"), nil
	}

	c := New(check)
	results, err := c.BatchCheck(context.Background(), authcore.PrincipalContext{UserID: "u1"}, requests(5))
	if err != nil {
		t.Fatalf("BatchCheck error: %v", err)
	}

	for i, d := range results {
		if i == 2 {
			if d.Allowed || d.Reason != authcore.ReasonInternalError {
				t.Fatalf("failed item = %+v, want internal-error denial", d)
			}
			continue
		}
		if !d.Allowed {
			t.Fatalf("item %d affected by neighbour failure: %+v", i, d)
		}
	}
}

func TestBatchCheck_PanicIsolated(t *testing.T) {
	check := func(ctx context.Context, p authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error) {
		if req.Resource == "assignment:1" {
			panic("boom")
		}
		return authcore.Allow("ok"), nil
	}

	c := New(check)
	results, err := c.BatchCheck(context.Background(), authcore.PrincipalContext{UserID: "u1"}, requests(3))
	if err != nil {
		t.Fatalf("BatchCheck error: %v", err)
	}
	if results[1].Allowed || results[1].Reason != authcore.ReasonInternalError {
		t.Fatalf("panicking item = %+v, want internal-error denial", results[1])
	}
	if !results[0].Allowed || !results[2].Allowed {
		t.Fatalf("neighbours affected by panic: %+v", results)
	}
}

func TestBatchCheck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(echoCheck)
	results, err := c.BatchCheck(ctx, authcore.PrincipalContext{UserID: "u1"}, requests(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if results != nil {
		t.Fatalf("cancelled batch must not return partial results: %+v", results)
	}
}

func TestBatchCheck_CancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	check := func(ctx context.Context, p authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		return authcore.Allow("ok"), nil
	}

	c := New(check, WithConcurrency(1))
	results, err := c.BatchCheck(ctx, authcore.PrincipalContext{UserID: "u1"}, requests(5))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if results != nil {
		t.Fatalf("cancelled batch must not return partial results: %+v", results)
	}
}

func TestBatchCheck_ConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int32
	check := func(ctx context.Context, p authcore.PrincipalContext, req authcore.PermissionRequest) (authcore.Decision, error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer active.Add(-1)
		return authcore.Allow("ok"), nil
	}

	c := New(check, WithConcurrency(4))
	if _, err := c.BatchCheck(context.Background(), authcore.PrincipalContext{UserID: "u1"}, requests(64)); err != nil {
		t.Fatalf("BatchCheck error: %v", err)
	}
	if p := peak.Load(); p > 4 {
		t.Fatalf("observed %d concurrent evaluations, bound is 4", p)
	}
}
