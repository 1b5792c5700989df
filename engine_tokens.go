package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wellmind/authkit/audit"
	"github.com/wellmind/authkit/identity"
	"github.com/wellmind/authkit/metrics"
	"github.com/wellmind/authkit/session"
	"github.com/wellmind/authkit/token"
)

// Validate verifies a presented token: signature, expiry, and the
// revocation state of its session, each checked independently. Signature
// and expiry need no store round-trip; the revocation lookup is the single
// external call, and its failure maps to ErrStoreUnavailable rather than
// any confirmed-invalid error.
func (e *Engine) Validate(ctx context.Context, raw string) (*TokenInfo, error) {
	claims, _, err := e.checkToken(ctx, raw)
	if err != nil {
		outcome := metrics.OutcomeDenied
		if errors.Is(err, ErrStoreUnavailable) {
			outcome = metrics.OutcomeError
		}
		e.deps.Metrics.RecordValidation(outcome)
		return nil, err
	}

	info, err := tokenInfo(claims)
	if err != nil {
		e.deps.Metrics.RecordValidation(metrics.OutcomeDenied)
		return nil, err
	}

	e.deps.Metrics.RecordValidation(metrics.OutcomeSuccess)
	return info, nil
}

// Refresh rotates a valid token: a new session is issued and the old one is
// revoked. Rotation, not in-place mutation, is what makes a stolen token's
// second refresh detectable: the old session is revoked by the first
// refresh, so the second fails with ErrTokenRevoked.
func (e *Engine) Refresh(ctx context.Context, raw string) (*LoginResult, error) {
	claims, oldSess, err := e.checkToken(ctx, raw)
	if err != nil {
		outcome := metrics.OutcomeDenied
		if errors.Is(err, ErrStoreUnavailable) {
			outcome = metrics.OutcomeError
		}
		e.deps.Metrics.RecordRefresh(outcome)
		return nil, err
	}

	ident, err := e.refreshIdentity(ctx, claims.UID)
	if err != nil {
		e.deps.Metrics.RecordRefresh(metrics.OutcomeDenied)
		e.emitAudit(ctx, audit.EventRefresh, false, claims.UID, oldSess.ID, err)
		return nil, err
	}

	result, err := e.issue(ctx, ident)
	if err != nil {
		e.deps.Metrics.RecordRefresh(metrics.OutcomeError)
		return nil, err
	}

	if err := e.revokeSession(ctx, oldSess.ID); err != nil {
		// The old session must not stay live next to the new one.
		// Withdraw the new session and report the store failure.
		_ = e.revokeSession(ctx, result.Session.ID)
		e.deps.Metrics.RecordRefresh(metrics.OutcomeError)
		return nil, err
	}

	e.deps.Metrics.RecordRefresh(metrics.OutcomeSuccess)
	e.emitAudit(ctx, audit.EventRefresh, true, ident.ID.String(), result.Session.ID, nil)
	return result, nil
}

// Logout revokes the session behind the presented token. Idempotent: a
// second logout of the same token succeeds, and an already-expired token is
// a no-op success because its session is terminal either way.
func (e *Engine) Logout(ctx context.Context, raw string) error {
	claims, err := e.deps.Tokens.Parse(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil
		}
		return ErrTokenInvalidSignature
	}

	if err := e.revokeSession(ctx, claims.SID); err != nil {
		return err
	}

	e.deps.Metrics.RecordSessionRevoked()
	e.emitAudit(ctx, audit.EventLogout, true, claims.UID, claims.SID, nil)
	return nil
}

// LogoutAll revokes every live session of an identity. Used on password
// change and administrative deactivation.
func (e *Engine) LogoutAll(ctx context.Context, identityID uuid.UUID) (int, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	revoked, err := e.deps.Sessions.RevokeAllForIdentity(sctx, identityID.String())
	if err != nil {
		return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for i := 0; i < revoked; i++ {
		e.deps.Metrics.RecordSessionRevoked()
	}
	e.emitAudit(ctx, audit.EventLogoutAll, true, identityID.String(), "", nil)
	return revoked, nil
}

// checkToken is the shared read path: parse claims locally, then consult the
// session store for revocation. A session that is gone from the store has
// nothing left vouching for the token and counts as revoked.
func (e *Engine) checkToken(ctx context.Context, raw string) (*token.Claims, *session.Session, error) {
	claims, err := e.deps.Tokens.Parse(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, nil, ErrTokenExpired
		}
		return nil, nil, ErrTokenInvalidSignature
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	sess, err := e.deps.Sessions.Get(sctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil, ErrTokenRevoked
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if sess.Revoked {
		return nil, nil, ErrTokenRevoked
	}

	return claims, sess, nil
}

// refreshIdentity reloads the account so a refresh re-checks liveness with
// current data, not the claims captured at issuance.
func (e *Engine) refreshIdentity(ctx context.Context, identityID string) (*identity.Identity, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return nil, ErrTokenInvalidSignature
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	ident, err := e.deps.Identities.FindByID(sctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrAccountInactive
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ident.Authenticatable() {
		return nil, ErrAccountInactive
	}
	return ident, nil
}

func (e *Engine) revokeSession(ctx context.Context, sessionID string) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.deps.Sessions.Revoke(sctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func tokenInfo(claims *token.Claims) (*TokenInfo, error) {
	id, err := uuid.Parse(claims.UID)
	if err != nil {
		return nil, ErrTokenInvalidSignature
	}
	return &TokenInfo{
		IdentityID: id,
		Role:       identity.Role(claims.Role),
		SessionID:  claims.SID,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}
