package authkit

import (
	"errors"
	"time"
)

// Config is the process-wide authentication configuration, constructed once
// at startup and passed by reference to the components that need it.
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	Throttle ThrottleConfig

	// StoreTimeout bounds every external-store round-trip made by the
	// engine. Zero means the DefaultConfig value.
	StoreTimeout time.Duration
}

// TokenConfig holds signing parameters for issued tokens.
type TokenConfig struct {
	// Secret is the shared symmetric signing key. Every service instance
	// must hold the same secret; at least 32 bytes.
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// SessionConfig holds session lifecycle parameters.
type SessionConfig struct {
	// TTL is the lifetime of a session and of the token derived from it.
	TTL time.Duration
	// RedisPrefix namespaces all session keys.
	RedisPrefix string
}

// ThrottleConfig holds fixed-window admission limits for login attempts.
type ThrottleConfig struct {
	LoginLimit  int
	LoginWindow time.Duration
	// PerIP additionally throttles by client IP when one is attached to
	// the context via WithClientIP.
	PerIP bool
	// FailClosed denies logins when the counter store is unreachable.
	// The default is fail-open: a store outage must not become a full
	// login outage.
	FailClosed bool
}

// DefaultConfig returns a baseline configuration. The token secret is left
// empty on purpose; Validate rejects it until the caller supplies one.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer: "authkit",
			Leeway: 30 * time.Second,
		},
		Session: SessionConfig{
			TTL:         15 * time.Minute,
			RedisPrefix: "auth",
		},
		Throttle: ThrottleConfig{
			LoginLimit:  10,
			LoginWindow: time.Minute,
			PerIP:       true,
		},
		StoreTimeout: 2 * time.Second,
	}
}

// Validate checks the configuration for conditions that must stop the
// service from starting.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("config: token secret missing or shorter than 32 bytes")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("config: token leeway out of range")
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session ttl must be positive")
	}
	if c.Throttle.LoginLimit <= 0 {
		return errors.New("config: login limit must be positive")
	}
	if c.Throttle.LoginWindow <= 0 {
		return errors.New("config: login window must be positive")
	}
	if c.StoreTimeout < 0 {
		return errors.New("config: store timeout must not be negative")
	}
	return nil
}

func (c *Config) storeTimeout() time.Duration {
	if c.StoreTimeout > 0 {
		return c.StoreTimeout
	}
	return 2 * time.Second
}
