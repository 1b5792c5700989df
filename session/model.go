package session

import "time"

// Session is the durable, revocable unit backing issued tokens. Expiry is
// derived by comparing the clock to ExpiresAt; Revoked is an explicit,
// one-way flag independent of expiry. Validation must check both: a session
// can be past its expiry and not yet revoked, or revoked long before expiry.
type Session struct {
	ID         string
	IdentityID string
	Role       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// Expired reports whether the session's lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
