package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, opts ...Option) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return New(NewRedisCounter(rdb, "rl"), opts...), mr
}

func TestAdmitFixedWindowScenario(t *testing.T) {
	limiter, mr := newLimiterTest(t)
	ctx := context.Background()

	const (
		key    = "login:ip1"
		limit  = 10
		window = 60 * time.Second
	)

	for i := 1; i <= limit; i++ {
		adm, err := limiter.Admit(ctx, key, limit, window)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !adm.Allowed {
			t.Fatalf("hit %d: expected allowed", i)
		}
		if want := limit - i; adm.Remaining != want {
			t.Fatalf("hit %d: remaining = %d, want %d", i, adm.Remaining, want)
		}
		if adm.ResetIn <= 0 || adm.ResetIn > window {
			t.Fatalf("hit %d: resetIn = %v out of range", i, adm.ResetIn)
		}
	}

	adm, err := limiter.Admit(ctx, key, limit, window)
	if err != nil {
		t.Fatalf("hit 11: %v", err)
	}
	if adm.Allowed {
		t.Fatal("hit 11: expected denied")
	}
	if adm.Remaining != 0 {
		t.Fatalf("hit 11: remaining = %d, want 0", adm.Remaining)
	}

	mr.FastForward(61 * time.Second)

	adm, err = limiter.Admit(ctx, key, limit, window)
	if err != nil {
		t.Fatalf("hit 12: %v", err)
	}
	if !adm.Allowed {
		t.Fatal("hit 12: expected allowed after window elapsed")
	}
	if adm.Remaining != limit-1 {
		t.Fatalf("hit 12: remaining = %d, want %d", adm.Remaining, limit-1)
	}
}

func TestAdmitDoesNotResetWindowOnLaterHits(t *testing.T) {
	limiter, mr := newLimiterTest(t)
	ctx := context.Background()

	if _, err := limiter.Admit(ctx, "k", 5, time.Minute); err != nil {
		t.Fatalf("first hit: %v", err)
	}

	mr.FastForward(40 * time.Second)

	adm, err := limiter.Admit(ctx, "k", 5, time.Minute)
	if err != nil {
		t.Fatalf("second hit: %v", err)
	}
	// The second hit must inherit the shrunken window, not re-arm a
	// fresh one.
	if adm.ResetIn > 20*time.Second {
		t.Fatalf("resetIn = %v, want <= 20s", adm.ResetIn)
	}
}

func TestAdmitRearmsLostExpiry(t *testing.T) {
	limiter, mr := newLimiterTest(t)
	ctx := context.Background()

	// A counter without an expiry is the residue of a failed Expire on
	// the window-creating hit. Admit must heal it.
	mr.Set("rl:stuck", "7")

	adm, err := limiter.Admit(ctx, "stuck", 10, time.Minute)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !adm.Allowed || adm.Remaining != 2 {
		t.Fatalf("admission = %+v, want allowed with remaining 2", adm)
	}
	if ttl := mr.TTL("rl:stuck"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v, want re-armed window", ttl)
	}
}

func TestAdmitFailOpenOnStoreOutage(t *testing.T) {
	var failures int
	limiter, mr := newLimiterTest(t, WithFailureHook(func(string, error) {
		failures++
	}))
	mr.Close()

	adm, err := limiter.Admit(context.Background(), "k", 10, time.Minute)
	if err != nil {
		t.Fatalf("fail-open must absorb the store error, got %v", err)
	}
	if !adm.Allowed {
		t.Fatal("fail-open must admit")
	}
	if adm.Remaining != -1 {
		t.Fatalf("remaining = %d, want -1 (no count observed)", adm.Remaining)
	}
	if failures == 0 {
		t.Fatal("expected failure hook to fire")
	}
}

func TestAdmitFailClosedOnStoreOutage(t *testing.T) {
	limiter, mr := newLimiterTest(t, WithPolicy(FailClosed))
	mr.Close()

	adm, err := limiter.Admit(context.Background(), "k", 10, time.Minute)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if adm.Allowed {
		t.Fatal("fail-closed must deny")
	}
}

func TestAdmitCountStaysCorrectUnderConcurrency(t *testing.T) {
	limiter, _ := newLimiterTest(t)
	ctx := context.Background()

	const hits = 50
	results := make(chan Admission, hits)
	for i := 0; i < hits; i++ {
		go func() {
			adm, err := limiter.Admit(ctx, "shared", 20, time.Minute)
			if err != nil {
				t.Errorf("admit: %v", err)
			}
			results <- adm
		}()
	}

	allowed := 0
	for i := 0; i < hits; i++ {
		if (<-results).Allowed {
			allowed++
		}
	}
	if allowed != 20 {
		t.Fatalf("allowed = %d, want exactly the limit", allowed)
	}
}
