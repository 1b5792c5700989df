package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/wellmind/authkit/audit"
	"github.com/wellmind/authkit/identity"
	"github.com/wellmind/authkit/linker"
)

// LinkProvider merges an external-provider identity into a local account and
// issues a session/token for it. This is the tail of an OAuth callback: the
// provider handshake (not this engine's concern) already produced the
// provider id, email, and tokens.
func (e *Engine) LinkProvider(ctx context.Context, req linker.Request) (*LoginResult, error) {
	sctx, cancel := e.storeCtx(ctx)
	ident, err := e.deps.Linker.Link(sctx, req)
	cancel()
	if err != nil {
		mapped := mapLinkError(err)
		e.emitAudit(ctx, audit.EventProviderLink, false, "", "", mapped)
		return nil, mapped
	}

	if !ident.Authenticatable() {
		e.emitAudit(ctx, audit.EventProviderLink, false, ident.ID.String(), "", ErrAccountInactive)
		return nil, ErrAccountInactive
	}

	result, err := e.issue(ctx, ident)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, audit.EventProviderLink, true, ident.ID.String(), result.Session.ID, nil)
	return result, nil
}

func mapLinkError(err error) error {
	switch {
	case errors.Is(err, linker.ErrAlreadyLinkedToOther):
		return ErrAlreadyLinkedToOther
	case errors.Is(err, identity.ErrNotFound):
		return ErrInvalidCredentials
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
