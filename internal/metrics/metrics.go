// Package metrics exposes Prometheus instrumentation for the gating engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	navigationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preppal_navigation_decisions_total",
			Help: "Main-frame navigation decisions by action and reason",
		},
		[]string{"action", "reason"},
	)

	grantsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preppal_grants_issued_total",
			Help: "Access grants issued by grading mode",
		},
		[]string{"mode"},
	)

	grantMinutes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preppal_grant_minutes",
			Help:    "Duration of issued access grants in minutes",
			Buckets: []float64{1, 2, 4, 7, 15, 30, 60},
		},
		[]string{"mode"},
	)

	grantsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preppal_grants_expired_total",
		Help: "Grants cleared by the expiry poller",
	})

	pipelineSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preppal_pipeline_steps_total",
			Help: "Challenge pipeline step outcomes",
		},
		[]string{"step", "outcome"},
	)

	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preppal_router_messages_total",
			Help: "Message router requests by tag and outcome",
		},
		[]string{"tag", "outcome"},
	)

	registerOnce sync.Once
)

// Register adds the collectors to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			navigationDecisions,
			grantsIssued,
			grantMinutes,
			grantsExpired,
			pipelineSteps,
			messages,
		)
	})
}

// RecordDecision counts one navigation decision.
func RecordDecision(action, reason string) {
	navigationDecisions.WithLabelValues(action, reason).Inc()
}

// RecordGrant counts an issued grant and its length.
func RecordGrant(mode string, minutes float64) {
	grantsIssued.WithLabelValues(mode).Inc()
	grantMinutes.WithLabelValues(mode).Observe(minutes)
}

// RecordGrantExpired counts a grant cleared on expiry.
func RecordGrantExpired() {
	grantsExpired.Inc()
}

// RecordStep counts a pipeline step outcome ("ok", "degraded", or an error reason).
func RecordStep(step, outcome string) {
	pipelineSteps.WithLabelValues(step, outcome).Inc()
}

// RecordMessage counts a routed message outcome.
func RecordMessage(tag, outcome string) {
	messages.WithLabelValues(tag, outcome).Inc()
}
