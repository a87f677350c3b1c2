// Package metrics exposes prometheus instrumentation for decisions and
// token issuance.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the authcore metric collectors.
type Recorder struct {
	decisions     *prometheus.CounterVec
	issuance      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	batchSize     prometheus.Histogram
	checkDuration prometheus.Histogram
}

// NewRecorder creates a Recorder and registers its collectors with reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "decisions_total",
			Help:      "Permission decisions by outcome.",
		}, []string{"outcome"}),
		issuance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_issuance_total",
			Help:      "Service token issuance attempts by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "token_verifications_total",
			Help:      "Service token verifications by result.",
		}, []string{"result"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "authcore",
			Name:      "batch_size",
			Help:      "Number of items per batch check.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "authcore",
			Name:      "check_duration_seconds",
			Help:      "Latency of single permission checks.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.decisions, r.issuance, r.verifications, r.batchSize, r.checkDuration)
	return r
}

// Decision outcomes.
const (
	OutcomeAllow    = "allow"
	OutcomeDeny     = "deny"
	OutcomeInternal = "internal_error"
)

// ObserveDecision counts one decision.
func (r *Recorder) ObserveDecision(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(outcome).Inc()
	r.checkDuration.Observe(duration.Seconds())
}

// ObserveBatch records the size of a batch check.
func (r *Recorder) ObserveBatch(size int) {
	if r == nil {
		return
	}
	r.batchSize.Observe(float64(size))
}

// ObserveIssuance counts one token issuance attempt.
func (r *Recorder) ObserveIssuance(result string) {
	if r == nil {
		return
	}
	r.issuance.WithLabelValues(result).Inc()
}

// ObserveVerification counts one token verification.
func (r *Recorder) ObserveVerification(result string) {
	if r == nil {
		return
	}
	r.verifications.WithLabelValues(result).Inc()
}
