package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wellmind/authkit/audit"
	"github.com/wellmind/authkit/identity"
	"github.com/wellmind/authkit/linker"
	"github.com/wellmind/authkit/metrics"
	"github.com/wellmind/authkit/password"
	"github.com/wellmind/authkit/ratelimit"
	"github.com/wellmind/authkit/session"
	"github.com/wellmind/authkit/token"
)

// Deps carries the engine's collaborators. Identities, Sessions, Tokens,
// Hasher, Limiter, and Linker are required; Metrics, Audit, and Logger are
// optional observability hooks.
type Deps struct {
	Identities identity.Store
	Sessions   *session.Store
	Tokens     *token.Manager
	Hasher     password.Hasher
	Limiter    *ratelimit.Limiter
	Linker     *linker.Linker

	Metrics *metrics.Collector
	Audit   audit.Sink
	Logger  *zerolog.Logger
}

// Engine owns the authentication control flow: admission, credential
// verification, token issuance, validation, refresh, revocation, and
// provider linking. Safe for concurrent use after New.
type Engine struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// New validates cfg and deps and builds an Engine. Construction is the
// fatal boundary: a missing signing secret or collaborator stops the
// service here, never per request.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Identities == nil:
		return nil, errors.New("authkit: identity store is required")
	case deps.Sessions == nil:
		return nil, errors.New("authkit: session store is required")
	case deps.Tokens == nil:
		return nil, errors.New("authkit: token manager is required")
	case deps.Hasher == nil:
		return nil, errors.New("authkit: password hasher is required")
	case deps.Limiter == nil:
		return nil, errors.New("authkit: rate limiter is required")
	case deps.Linker == nil:
		return nil, errors.New("authkit: identity linker is required")
	}

	log := zerolog.Nop()
	if deps.Logger != nil {
		log = *deps.Logger
	}

	return &Engine{
		cfg:  cfg,
		deps: deps,
		log:  log,
		now:  time.Now,
	}, nil
}

// TokenInfo is the outcome of a successful validation: the identity and
// session the token is bound to, taken from the verified claims.
type TokenInfo struct {
	IdentityID uuid.UUID
	Role       identity.Role
	SessionID  string
	ExpiresAt  time.Time
}

// LoginResult is a freshly issued session with its signed token.
type LoginResult struct {
	Identity *identity.Identity
	Session  *session.Session
	Token    string
}

// RateLimitedError is the denial returned when a window is exhausted. It
// matches ErrRateLimited under errors.Is and carries the retry-after signal.
type RateLimitedError struct {
	ResetIn time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, window resets in %s", e.ResetIn)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// issue creates a session for ident and signs its token. The token's expiry
// is the session's expiry; every validation of it will point back at the
// session record saved here.
func (e *Engine) issue(ctx context.Context, ident *identity.Identity) (*LoginResult, error) {
	now := e.now()
	sess := &session.Session{
		ID:         uuid.NewString(),
		IdentityID: ident.ID.String(),
		Role:       string(ident.Role),
		IssuedAt:   now,
		ExpiresAt:  now.Add(e.cfg.Session.TTL),
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.deps.Sessions.Save(sctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	raw, err := e.deps.Tokens.Issue(sess.IdentityID, sess.Role, sess.ID, sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Identity: ident, Session: sess, Token: raw}, nil
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.storeTimeout())
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, identityID, sessionID string, opErr error) {
	if e.deps.Audit == nil {
		return
	}
	event := audit.Event{
		Timestamp:  e.now(),
		EventType:  eventType,
		IdentityID: identityID,
		SessionID:  sessionID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.deps.Audit.Emit(ctx, event)
}
