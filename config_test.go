package authkit

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = testSecret
	return cfg
}

func TestDefaultConfigRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without a secret")
	}
	if !strings.Contains(err.Error(), "secret") {
		t.Fatalf("err = %v, want a secret complaint", err)
	}
}

func TestValidateAcceptsDefaultWithSecret(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Token.Secret = []byte("too short")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for a short secret")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"negative session ttl", func(c *Config) { c.Session.TTL = -time.Minute }},
		{"zero login limit", func(c *Config) { c.Throttle.LoginLimit = 0 }},
		{"zero login window", func(c *Config) { c.Throttle.LoginWindow = 0 }},
		{"negative store timeout", func(c *Config) { c.StoreTimeout = -time.Second }},
		{"excessive leeway", func(c *Config) { c.Token.Leeway = 10 * time.Minute }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestStoreTimeoutFallsBackToDefault(t *testing.T) {
	cfg := validConfig()
	cfg.StoreTimeout = 0
	if got := cfg.storeTimeout(); got != 2*time.Second {
		t.Fatalf("storeTimeout = %s, want 2s", got)
	}

	cfg.StoreTimeout = 500 * time.Millisecond
	if got := cfg.storeTimeout(); got != 500*time.Millisecond {
		t.Fatalf("storeTimeout = %s, want 500ms", got)
	}
}
