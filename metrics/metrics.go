// Package metrics collects Prometheus counters for authentication outcomes
// and counter-store health. Absorbed fail-open store errors are visible only
// here, so these counters are the place to alert on a degraded limiter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records authkit metrics. A nil *Collector is a
// valid no-op recorder so library consumers can opt out.
type Collector struct {
	logins          *prometheus.CounterVec
	validations     *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	rateLimit       *prometheus.CounterVec
	storeFailures   prometheus.Counter
	sessionsRevoked prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_validations_total",
			Help: "Token validations by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_refreshes_total",
			Help: "Token refreshes by outcome.",
		}, []string{"outcome"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_rate_limit_decisions_total",
			Help: "Rate limiter admission decisions.",
		}, []string{"decision"}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkit_counter_store_failures_total",
			Help: "Counter store failures absorbed or surfaced by the rate limiter.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authkit_sessions_revoked_total",
			Help: "Sessions explicitly revoked.",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.validations,
		c.refreshes,
		c.rateLimit,
		c.storeFailures,
		c.sessionsRevoked,
	)

	return c
}

// Outcome labels shared by login/validate/refresh counters.
const (
	OutcomeSuccess     = "success"
	OutcomeDenied      = "denied"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

func (c *Collector) RecordLogin(outcome string) {
	if c == nil {
		return
	}
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordValidation(outcome string) {
	if c == nil {
		return
	}
	c.validations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRefresh(outcome string) {
	if c == nil {
		return
	}
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRateLimitDecision(allowed bool) {
	if c == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	c.rateLimit.WithLabelValues(decision).Inc()
}

func (c *Collector) RecordStoreFailure() {
	if c == nil {
		return
	}
	c.storeFailures.Inc()
}

func (c *Collector) RecordSessionRevoked() {
	if c == nil {
		return
	}
	c.sessionsRevoked.Inc()
}
