package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no identity or link matches the query.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateEmail is returned when a create would reuse an email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateLink is returned when a create would reuse a
	// (provider, provider id) pair that is already claimed.
	ErrDuplicateLink = errors.New("external identity already linked")
)

// Store is the persistence boundary for identities and their external links.
// Lookups by email are case-insensitive. FindByID and FindByEmail return
// soft-deleted rows; deciding whether a deleted identity may act is the
// caller's job, not the store's.
//
// InTx runs fn against a store view bound to a single transaction. Every
// compound check-then-create sequence (notably the identity linker's) must
// run inside InTx so concurrent callers serialize on the store's uniqueness
// constraints rather than racing each other.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Create(ctx context.Context, ident *Identity) error
	Update(ctx context.Context, ident *Identity) error

	FindExternalLink(ctx context.Context, provider, providerID string) (*ExternalLink, error)
	CreateExternalLink(ctx context.Context, link *ExternalLink) error
	UpdateExternalLink(ctx context.Context, link *ExternalLink) error

	FindCounselorProfile(ctx context.Context, identityID uuid.UUID) (*CounselorProfile, error)
	SaveCounselorProfile(ctx context.Context, profile *CounselorProfile) error

	InTx(ctx context.Context, fn func(tx Store) error) error
}
