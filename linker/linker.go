// Package linker reconciles an external-provider identity with a local
// account record: re-links idempotently, attaches providers to an
// authenticated account, or provisions an OAuth-only account.
package linker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellmind/authkit/identity"
)

// ErrAlreadyLinkedToOther is returned when the (provider, provider id) pair
// is claimed by a different identity than the one requesting the link.
var ErrAlreadyLinkedToOther = errors.New("external identity linked to another account")

// Request describes one linking attempt. Existing is non-nil when an
// already-authenticated user is attaching a new provider to their account;
// it is nil for provider-initiated sign-in flows. Only Existing.ID is
// consulted; the record is reloaded inside the transaction.
type Request struct {
	Provider      string
	ProviderID    string
	ProviderEmail string
	AccessToken   string
	RefreshToken  string
	ExpiresAt     *time.Time
	Existing      *identity.Identity
}

// Linker merges external identities into local accounts.
type Linker struct {
	store identity.Store
}

func New(store identity.Store) *Linker {
	return &Linker{store: store}
}

// Link resolves req to the owning identity, creating links and accounts as
// needed. The whole decision runs inside one store transaction: a concurrent
// creator for the same (provider, provider id) hits the store's uniqueness
// constraint and fails instead of producing a duplicate link.
func (l *Linker) Link(ctx context.Context, req Request) (*identity.Identity, error) {
	if req.Provider == "" || req.ProviderID == "" {
		return nil, fmt.Errorf("linker: provider and provider id are required")
	}

	var resolved *identity.Identity
	err := l.store.InTx(ctx, func(tx identity.Store) error {
		ident, err := l.resolve(ctx, tx, req)
		if err != nil {
			return err
		}
		resolved = ident
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (l *Linker) resolve(ctx context.Context, tx identity.Store, req Request) (*identity.Identity, error) {
	link, err := tx.FindExternalLink(ctx, req.Provider, req.ProviderID)
	switch {
	case err == nil:
		return l.relink(ctx, tx, link, req)
	case errors.Is(err, identity.ErrNotFound):
	default:
		return nil, err
	}

	if req.Existing != nil {
		owner, err := tx.FindByID(ctx, req.Existing.ID)
		if err != nil {
			return nil, err
		}
		if err := l.createLink(ctx, tx, owner.ID, req); err != nil {
			return nil, err
		}
		return owner, nil
	}

	owner, err := tx.FindByEmail(ctx, req.ProviderEmail)
	if errors.Is(err, identity.ErrNotFound) {
		owner, err = l.provision(ctx, tx, req)
	}
	if err != nil {
		return nil, err
	}
	if err := l.createLink(ctx, tx, owner.ID, req); err != nil {
		return nil, err
	}
	return owner, nil
}

// relink handles an already-known (provider, provider id): refresh the
// stored provider tokens and hand back the owning identity. When the caller
// is authenticated as somebody else, that is a conflict, not a merge.
func (l *Linker) relink(ctx context.Context, tx identity.Store, link *identity.ExternalLink, req Request) (*identity.Identity, error) {
	if req.Existing != nil && req.Existing.ID != link.IdentityID {
		return nil, ErrAlreadyLinkedToOther
	}

	if req.AccessToken != "" || req.RefreshToken != "" {
		link.AccessToken = req.AccessToken
		link.RefreshToken = req.RefreshToken
		link.ExpiresAt = req.ExpiresAt
		if req.ProviderEmail != "" {
			link.ProviderEmail = req.ProviderEmail
		}
		if err := tx.UpdateExternalLink(ctx, link); err != nil {
			return nil, err
		}
	}

	return tx.FindByID(ctx, link.IdentityID)
}

func (l *Linker) createLink(ctx context.Context, tx identity.Store, ownerID uuid.UUID, req Request) error {
	err := tx.CreateExternalLink(ctx, &identity.ExternalLink{
		IdentityID:    ownerID,
		Provider:      req.Provider,
		ProviderID:    req.ProviderID,
		ProviderEmail: req.ProviderEmail,
		AccessToken:   req.AccessToken,
		RefreshToken:  req.RefreshToken,
		ExpiresAt:     req.ExpiresAt,
	})
	if errors.Is(err, identity.ErrDuplicateLink) {
		// Lost the race against a concurrent creator.
		return ErrAlreadyLinkedToOther
	}
	return err
}

// provision creates an OAuth-only account: no password digest, user role,
// verified because the provider vouched for the email.
func (l *Linker) provision(ctx context.Context, tx identity.Store, req Request) (*identity.Identity, error) {
	if req.ProviderEmail == "" {
		return nil, fmt.Errorf("linker: provider email required to create an account")
	}
	ident := &identity.Identity{
		ID:         uuid.New(),
		Email:      req.ProviderEmail,
		Role:       identity.RoleUser,
		Timezone:   "UTC",
		IsActive:   true,
		IsVerified: true,
	}
	if err := tx.Create(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}
