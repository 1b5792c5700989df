package authkit

import "errors"

// Classified failures returned by Engine operations. Boundary layers map
// each to a transport response; none of them is fatal. A genuinely fatal
// condition (missing signing secret, invalid config) fails construction
// instead.
var (
	// ErrInvalidCredentials covers unknown identifiers and wrong secrets
	// alike, so responses never reveal which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for soft-deleted or deactivated
	// accounts regardless of credential correctness.
	ErrAccountInactive = errors.New("account inactive")
	// ErrRateLimited is returned when admission is denied for the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenExpired is returned when the token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when the token's session was revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalidSignature is returned when the token fails
	// signature or structural verification.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	// ErrStoreUnavailable is returned when a backing store cannot be
	// reached in time. Distinct from the token errors: the credential
	// could not be checked, not confirmed invalid.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrAlreadyLinkedToOther is returned when a provider identity is
	// claimed by a different account.
	ErrAlreadyLinkedToOther = errors.New("provider identity linked to another account")
)
