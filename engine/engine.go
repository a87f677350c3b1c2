// Package engine assembles the token service, policy store, evaluator
// and batch coordinator into a single authcore.Service, adding audit
// and metrics instrumentation around every operation.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"authcore"
	"authcore/audit"
	"authcore/batch"
	"authcore/eval"
	"authcore/metrics"
	"authcore/policy"
	"authcore/token"
)

// Options configures an Engine. Tokens and Store are required; the
// rest default to no-ops.
type Options struct {
	Tokens  *token.Service
	Store   *policy.Store
	Audit   audit.Emitter
	Metrics *metrics.Recorder
	Logger  *zap.Logger

	// BatchConcurrency bounds parallel evaluation inside one batch.
	BatchConcurrency int
}

// Engine implements authcore.Service.
type Engine struct {
	tokens      *token.Service
	store       *policy.Store
	audit       audit.Emitter
	metrics     *metrics.Recorder
	logger      *zap.Logger
	concurrency int
}

// New creates an Engine from the given components.
func New(opts Options) (*Engine, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token service is required")
	}
	if opts.Store == nil {
		return nil, errors.New("policy store is required")
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BatchConcurrency == 0 {
		opts.BatchConcurrency = batch.DefaultConcurrency
	}

	return &Engine{
		tokens:      opts.Tokens,
		store:       opts.Store,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		concurrency: opts.BatchConcurrency,
	}, nil
}

var _ authcore.Service = (*Engine)(nil)

// IssueServiceToken implements authcore.TokenIssuer.
func (e *Engine) IssueServiceToken(ctx context.Context, serviceID, serviceSecret string) (*authcore.ServiceToken, error) {
	tok, err := e.tokens.IssueServiceToken(ctx, serviceID, serviceSecret)
	if err != nil {
		e.audit.TokenRejected(ctx, serviceID, err)
		e.metrics.ObserveIssuance("rejected")
		return nil, err
	}
	e.audit.TokenIssued(ctx, serviceID, tok.ExpiresAt)
	e.metrics.ObserveIssuance("issued")
	return tok, nil
}

// VerifyServiceToken implements authcore.TokenVerifier.
func (e *Engine) VerifyServiceToken(ctx context.Context, tokenString string) (string, error) {
	serviceID, err := e.tokens.VerifyServiceToken(ctx, tokenString)
	if err != nil {
		e.metrics.ObserveVerification("rejected")
		return "", err
	}
	e.metrics.ObserveVerification("verified")
	return serviceID, nil
}

// Check implements authcore.Checker. Policy denials and infrastructure
// failures both come back as decisions; the latter always deny.
func (e *Engine) Check(ctx context.Context, principal authcore.PrincipalContext, req authcore.PermissionRequest) authcore.Decision {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return authcore.Deny(err.Error())
	}
	if err := principal.Validate(); err != nil {
		return authcore.Deny(err.Error())
	}

	version := ""
	var decision authcore.Decision
	snap, err := e.store.Snapshot()
	if err != nil {
		e.logger.Error("permission check failed", zap.Error(err))
		decision = authcore.DenyInternal()
	} else {
		version = snap.Version()
		decision = eval.Check(snap, principal, req)
	}

	e.emit(ctx, principal, req, decision, version, -1)
	e.metrics.ObserveDecision(outcome(decision), time.Since(start))
	return decision
}

// BatchCheck implements authcore.BatchChecker. When a snapshot is
// available it is pinned for the whole batch, so every item is decided
// against the same policy version.
func (e *Engine) BatchCheck(ctx context.Context, principal authcore.PrincipalContext, reqs []authcore.PermissionRequest) ([]authcore.Decision, error) {
	if err := authcore.ValidateBatch(principal, reqs); err != nil {
		return nil, err
	}

	e.metrics.ObserveBatch(len(reqs))

	version := ""
	check := batch.CheckFunc(func(ctx context.Context, p authcore.PrincipalContext, r authcore.PermissionRequest) (authcore.Decision, error) {
		snap, err := e.store.Snapshot()
		if err != nil {
			return authcore.DenyInternal(), err
		}
		return eval.Check(snap, p, r), nil
	})
	if snap, err := e.store.Snapshot(); err == nil {
		// Pin one snapshot so every item in the batch is decided
		// against the same policy version.
		version = snap.Version()
		check = func(ctx context.Context, p authcore.PrincipalContext, r authcore.PermissionRequest) (authcore.Decision, error) {
			return eval.Check(snap, p, r), nil
		}
	}

	coordinator := batch.New(check,
		batch.WithConcurrency(e.concurrency),
		batch.WithLogger(e.logger),
	)
	results, err := coordinator.BatchCheck(ctx, principal, reqs)
	if err != nil {
		return nil, err
	}

	for i, d := range results {
		e.emit(ctx, principal, reqs[i], d, version, i)
		e.metrics.ObserveDecision(outcome(d), 0)
	}
	return results, nil
}

// emit sends a decision to the audit emitter.
func (e *Engine) emit(ctx context.Context, principal authcore.PrincipalContext, req authcore.PermissionRequest, d authcore.Decision, version string, batchIndex int) {
	serviceID, _ := authcore.ServiceIDFromContext(ctx)
	e.audit.Decision(ctx, audit.DecisionEvent{
		TenantID:      principal.TenantID,
		ActorHash:     audit.HashActor(principal.UserID),
		ServiceID:     serviceID,
		Resource:      req.Resource,
		Action:        req.Action,
		Allowed:       d.Allowed,
		Reason:        d.Reason,
		PolicyVersion: version,
		BatchIndex:    batchIndex,
	})
}

// outcome maps a decision to its metrics label.
func outcome(d authcore.Decision) string {
	switch {
	case d.Allowed:
		return metrics.OutcomeAllow
	case d.Reason == authcore.ReasonInternalError:
		return metrics.OutcomeInternal
	default:
		return metrics.OutcomeDeny
	}
}
