// Package authkit is the authentication core shared by every instance of
// the service: session/token lifecycle, distributed rate limiting, and
// external-provider account linking.
//
// Instances coordinate exclusively through external stores. Rate-limit
// windows and session revocation state live in Redis; identities and
// provider links live in the relational identity store. There is no
// in-process shared mutable state that matters, so [Engine] methods are safe
// to call from any number of goroutines on any number of instances.
//
// # Architecture boundaries
//
// authkit is the public surface: [Engine], [Config], sentinel errors, and
// context helpers. Each concern lives in its own leaf package (ratelimit,
// session, token, identity, linker, password, audit, metrics) and the
// composition root wires them into an Engine via [Deps]. HTTP routing,
// request validation, and transport concerns stay outside; cmd/authd shows
// one such wiring.
//
// # Failure posture
//
// Signature and expiry checks are instance-local. Revocation and rate-limit
// checks need a store round-trip and carry a bounded timeout; a limiter
// outage follows the configured fail-open/fail-closed policy, and a session
// store outage surfaces as [ErrStoreUnavailable] so callers can tell
// "cannot verify" apart from "confirmed invalid".
package authkit
