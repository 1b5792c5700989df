package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewStore(rdb, "auth"), mr
}

func testSession(id, identityID string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		IdentityID: identityID,
		Role:       "user",
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "uid-1")

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IdentityID != "uid-1" || got.Role != "user" || got.Revoked {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.IssuedAt.Unix() != sess.IssuedAt.Unix() || got.ExpiresAt.Unix() != sess.ExpiresAt.Unix() {
		t.Fatalf("timestamps mismatch: got %+v want %+v", got, sess)
	}
}

func TestGetMissingSession(t *testing.T) {
	store, _ := newStoreTest(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "uid-1")

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Revoke(ctx, "sid-1"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := store.Revoke(ctx, "sid-1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Revoked {
		t.Fatal("expected session revoked")
	}
}

func TestRevokeMissingSessionIsNoOp(t *testing.T) {
	store, _ := newStoreTest(t)

	if err := store.Revoke(context.Background(), "missing"); err != nil {
		t.Fatalf("revoke missing: %v", err)
	}
}

func TestRevokePreservesTTL(t *testing.T) {
	store, mr := newStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "uid-1")

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	before := mr.TTL("auth:sess:sid-1")
	if err := store.Revoke(ctx, "sid-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	after := mr.TTL("auth:sess:sid-1")
	if after <= 0 || after > before {
		t.Fatalf("ttl after revoke = %v (before %v), want preserved", after, before)
	}
}

func TestRevokeAllForIdentity(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()

	for _, id := range []string{"sid-1", "sid-2"} {
		if err := store.Save(ctx, testSession(id, "uid-1")); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := store.Save(ctx, testSession("sid-other", "uid-2")); err != nil {
		t.Fatalf("save other: %v", err)
	}

	revoked, err := store.RevokeAllForIdentity(ctx, "uid-1")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("revoked = %d, want 2", revoked)
	}

	for _, id := range []string{"sid-1", "sid-2"} {
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if !got.Revoked {
			t.Fatalf("session %s not revoked", id)
		}
	}

	other, err := store.Get(ctx, "sid-other")
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if other.Revoked {
		t.Fatal("unrelated identity's session revoked")
	}
}

func TestSessionExpiresWithKey(t *testing.T) {
	store, mr := newStoreTest(t)
	ctx := context.Background()

	sess := testSession("sid-1", "uid-1")
	sess.ExpiresAt = time.Now().Add(time.Minute)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestSaveRejectsExpiredSession(t *testing.T) {
	store, _ := newStoreTest(t)

	sess := testSession("sid-1", "uid-1")
	sess.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Save(context.Background(), sess); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
