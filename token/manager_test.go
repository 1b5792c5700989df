package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newManagerTest(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: testSecret, Issuer: "authkit-test"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestIssueParseRoundTrip(t *testing.T) {
	m := newManagerTest(t)
	now := time.Now()

	raw, err := m.Issue("uid-1", "counselor", "sid-1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != "uid-1" || claims.Role != "counselor" || claims.SID != "sid-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Unix() != now.Add(time.Hour).Unix() {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt.Time, now.Add(time.Hour))
	}
}

func TestParseExpiredToken(t *testing.T) {
	m := newManagerTest(t)
	now := time.Now()

	raw, err := m.Issue("uid-1", "user", "sid-1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Parse(raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseForeignSignature(t *testing.T) {
	m := newManagerTest(t)
	other, err := NewManager(Config{Secret: []byte("ffffffffffffffffffffffffffffffff")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now()
	raw, err := other.Issue("uid-1", "user", "sid-1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParseTamperedToken(t *testing.T) {
	m := newManagerTest(t)
	now := time.Now()

	raw, err := m.Issue("uid-1", "user", "sid-1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(raw, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := m.Parse(tampered); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestParseRejectsMissingSessionBinding(t *testing.T) {
	m := newManagerTest(t)
	now := time.Now()

	raw, err := m.Issue("uid-1", "user", "", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty sid, got %v", err)
	}
}

func TestParseHonorsIssuer(t *testing.T) {
	m := newManagerTest(t)
	foreign, err := NewManager(Config{Secret: testSecret, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now()
	raw, err := foreign.Issue("uid-1", "user", "sid-1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong issuer, got %v", err)
	}
}
