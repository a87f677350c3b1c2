// Package audit emits a structured event for every decision and token
// operation, so each allow or deny is traceable to its reason and
// policy version. Actor ids are hashed before leaving the process.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// DecisionEvent describes one permission decision.
type DecisionEvent struct {
	TenantID      string
	ActorHash     string
	ServiceID     string // verified calling service, when present
	Resource      string
	Action        string
	Allowed       bool
	Reason        string
	PolicyVersion string
	BatchIndex    int // -1 for single checks
}

// Emitter receives audit events. Implementations must be safe for
// concurrent use and must not influence decision outcomes.
type Emitter interface {
	Decision(ctx context.Context, event DecisionEvent)
	TokenIssued(ctx context.Context, serviceID string, expiresAt time.Time)
	TokenRejected(ctx context.Context, serviceID string, err error)
}

// HashActor returns the sha256 hex digest of an actor id, or "" for an
// empty id. Raw user ids never appear in audit output.
func HashActor(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// zapEmitter writes audit events to a zap logger.
type zapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter creates an Emitter writing to the given logger.
func NewZapEmitter(logger *zap.Logger) Emitter {
	return &zapEmitter{logger: logger.Named("audit")}
}

// Decision implements Emitter.
func (e *zapEmitter) Decision(ctx context.Context, event DecisionEvent) {
	fields := []zap.Field{
		zap.String("tenant_id", event.TenantID),
		zap.String("actor", event.ActorHash),
		zap.String("resource", event.Resource),
		zap.String("action", event.Action),
		zap.Bool("allowed", event.Allowed),
		zap.String("reason", event.Reason),
	}
	if event.ServiceID != "" {
		fields = append(fields, zap.String("service_id", event.ServiceID))
	}
	if event.PolicyVersion != "" {
		fields = append(fields, zap.String("policy_version", event.PolicyVersion))
	}
	if event.BatchIndex >= 0 {
		fields = append(fields, zap.Int("batch_index", event.BatchIndex))
	}
	e.logger.Info("permission decision", fields...)
}

// TokenIssued implements Emitter.
func (e *zapEmitter) TokenIssued(ctx context.Context, serviceID string, expiresAt time.Time) {
	e.logger.Info("service token issued",
		zap.String("service_id", serviceID),
		zap.Time("expires_at", expiresAt),
	)
}

// TokenRejected implements Emitter.
func (e *zapEmitter) TokenRejected(ctx context.Context, serviceID string, err error) {
	e.logger.Warn("service token rejected",
		zap.String("service_id", serviceID),
		zap.Error(err),
	)
}

// nopEmitter discards events.
type nopEmitter struct{}

// NewNop returns an Emitter that discards everything.
func NewNop() Emitter { return nopEmitter{} }

func (nopEmitter) Decision(context.Context, DecisionEvent)        {}
func (nopEmitter) TokenIssued(context.Context, string, time.Time) {}
func (nopEmitter) TokenRejected(context.Context, string, error)   {}
