// Package ratelimit provides fixed-window request admission backed by a
// shared counter store, consistent across concurrently running service
// instances.
//
// # Window semantics
//
// Each key is an atomic counter: INCR on every hit, EXPIRE applied only by
// the hit that created the window (post-increment count of 1). The expiry is
// therefore never pushed forward by later hits, and re-applying it is
// harmless. Count correctness is the hard invariant; window expiry tolerates
// one request's worth of looseness when the expiry step itself fails.
package ratelimit

import (
	"context"
	"time"
)

// Policy selects the behavior when the counter store is unreachable.
type Policy int

const (
	// FailOpen admits requests when the store is down. This is the
	// default: a store outage must not become a full login outage.
	FailOpen Policy = iota
	// FailClosed denies requests when the store is down.
	FailClosed
)

// Admission is the outcome of one Admit call. Remaining is the quota left in
// the current window; ResetIn is the time until the window expires. On a
// fail-open store failure Remaining is -1 because no count was observed.
type Admission struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicy overrides the store-failure policy.
func WithPolicy(p Policy) Option {
	return func(l *Limiter) { l.policy = p }
}

// WithFailureHook registers a callback invoked on every counter-store
// failure, after the policy has been applied. Used to surface absorbed
// fail-open errors to logging and metrics.
func WithFailureHook(hook func(key string, err error)) Option {
	return func(l *Limiter) { l.onFailure = hook }
}

// Limiter turns counter-store operations into fixed-window admission
// decisions. Safe for concurrent use.
type Limiter struct {
	counter   Counter
	policy    Policy
	onFailure func(key string, err error)
}

func New(counter Counter, opts ...Option) *Limiter {
	l := &Limiter{counter: counter, policy: FailOpen}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records a hit against key and decides admission for the current
// window. The error is non-nil only under FailClosed when the store is
// unreachable; fail-open failures are absorbed and reported through the
// failure hook.
func (l *Limiter) Admit(ctx context.Context, key string, limit int, window time.Duration) (Admission, error) {
	count, err := l.counter.Incr(ctx, key)
	if err != nil {
		return l.failed(key, window, err)
	}

	// Only the window-creating hit arms the expiry, so later hits never
	// reset the window. An expiry failure here is tolerated: the count
	// stays correct and the next pass through the TTL probe re-arms it.
	if count == 1 {
		if err := l.counter.Expire(ctx, key, window); err != nil {
			l.reportFailure(key, err)
		}
	}

	resetIn := window
	ttl, err := l.counter.TTL(ctx, key)
	switch {
	case err != nil:
		l.reportFailure(key, err)
	case ttl < 0:
		// The key exists without an expiry: the window-creating hit
		// lost its Expire call. Re-arm rather than let the counter
		// grow forever.
		if err := l.counter.Expire(ctx, key, window); err != nil {
			l.reportFailure(key, err)
		}
	default:
		resetIn = ttl
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Admission{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}

func (l *Limiter) failed(key string, window time.Duration, err error) (Admission, error) {
	l.reportFailure(key, err)
	if l.policy == FailClosed {
		return Admission{Allowed: false, Remaining: 0, ResetIn: window}, err
	}
	return Admission{Allowed: true, Remaining: -1, ResetIn: 0}, nil
}

func (l *Limiter) reportFailure(key string, err error) {
	if l.onFailure != nil {
		l.onFailure(key, err)
	}
}
