package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wellmind/authkit/audit"
	"github.com/wellmind/authkit/identity"
	"github.com/wellmind/authkit/metrics"
)

// Login authenticates an email/password pair and issues a session and
// token. The attempt passes the rate limiter first, keyed by identifier and
// (when attached to ctx) by client IP, so admission state is consistent
// across all service instances.
func (e *Engine) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := e.admitLogin(ctx, email); err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.deps.Metrics.RecordLogin(metrics.OutcomeRateLimited)
			e.emitAudit(ctx, audit.EventRateLimited, false, "", "", err)
		} else {
			e.deps.Metrics.RecordLogin(metrics.OutcomeError)
		}
		return nil, err
	}

	ident, err := e.lookupForLogin(ctx, email)
	if err != nil {
		outcome := metrics.OutcomeDenied
		if errors.Is(err, ErrStoreUnavailable) {
			outcome = metrics.OutcomeError
		}
		e.deps.Metrics.RecordLogin(outcome)
		e.emitAudit(ctx, audit.EventLogin, false, "", "", err)
		return nil, err
	}

	if ident.PasswordHash == "" || !e.deps.Hasher.Verify(secret, ident.PasswordHash) {
		e.deps.Metrics.RecordLogin(metrics.OutcomeDenied)
		e.emitAudit(ctx, audit.EventLogin, false, ident.ID.String(), "", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	result, err := e.issue(ctx, ident)
	if err != nil {
		e.deps.Metrics.RecordLogin(metrics.OutcomeError)
		e.emitAudit(ctx, audit.EventLogin, false, ident.ID.String(), "", err)
		return nil, err
	}

	e.stampLastLogin(ctx, ident)

	e.deps.Metrics.RecordLogin(metrics.OutcomeSuccess)
	e.emitAudit(ctx, audit.EventLogin, true, ident.ID.String(), result.Session.ID, nil)
	return result, nil
}

// admitLogin runs the fixed-window admission checks. A denied window
// returns *RateLimitedError; a store failure under the fail-closed policy
// surfaces as ErrStoreUnavailable, while fail-open failures were already
// absorbed inside the limiter.
func (e *Engine) admitLogin(ctx context.Context, email string) error {
	keys := []string{"login:email:" + email}
	if e.cfg.Throttle.PerIP {
		if ip := clientIPFromContext(ctx); ip != "" {
			keys = append(keys, "login:ip:"+ip)
		}
	}

	for _, key := range keys {
		sctx, cancel := e.storeCtx(ctx)
		adm, err := e.deps.Limiter.Admit(sctx, key, e.cfg.Throttle.LoginLimit, e.cfg.Throttle.LoginWindow)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.deps.Metrics.RecordRateLimitDecision(adm.Allowed)
		if !adm.Allowed {
			return &RateLimitedError{ResetIn: adm.ResetIn}
		}
	}
	return nil
}

func (e *Engine) lookupForLogin(ctx context.Context, email string) (*identity.Identity, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	ident, err := e.deps.Identities.FindByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Deleted and deactivated accounts fail before the password check:
	// the outcome must not depend on credential correctness.
	if !ident.Authenticatable() {
		return nil, ErrAccountInactive
	}
	return ident, nil
}

// stampLastLogin records the login time. Best effort: a failed stamp is
// logged and never blocks an otherwise successful login.
func (e *Engine) stampLastLogin(ctx context.Context, ident *identity.Identity) {
	now := e.now()
	ident.LastLogin = &now

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.deps.Identities.Update(sctx, ident); err != nil {
		e.log.Warn().Err(err).Str("identity", ident.ID.String()).Msg("last-login stamp failed")
	}
}
