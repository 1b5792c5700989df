// Package gormstore persists identities, external provider links, and
// counselor profiles through GORM. Production deployments run it against
// Postgres; tests run it against in-memory SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wellmind/authkit/identity"
)

// Store implements identity.Store on top of a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// New wraps db and migrates the schema. The db must be opened with
// TranslateError enabled so uniqueness violations surface as
// gorm.ErrDuplicatedKey.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: nil db")
	}
	if err := db.AutoMigrate(&userRow{}, &oauthProviderRow{}, &counselorProfileRow{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: find by id: %w", err)
	}
	return row.toIdentity()
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", normalizeEmail(email)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: find by email: %w", err)
	}
	return row.toIdentity()
}

func (s *Store) Create(ctx context.Context, ident *identity.Identity) error {
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	ident.Email = normalizeEmail(ident.Email)
	row := userRowFrom(ident)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return identity.ErrDuplicateEmail
		}
		return fmt.Errorf("gormstore: create identity: %w", err)
	}
	ident.CreatedAt = row.CreatedAt
	ident.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) Update(ctx context.Context, ident *identity.Identity) error {
	ident.Email = normalizeEmail(ident.Email)
	row := userRowFrom(ident)
	result := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", row.ID).
		Select("*").Omit("id", "created_at").Updates(row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return identity.ErrDuplicateEmail
		}
		return fmt.Errorf("gormstore: update identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) FindExternalLink(ctx context.Context, provider, providerID string) (*identity.ExternalLink, error) {
	var row oauthProviderRow
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: find external link: %w", err)
	}
	return row.toLink()
}

func (s *Store) CreateExternalLink(ctx context.Context, link *identity.ExternalLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	row := oauthProviderRowFrom(link)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return identity.ErrDuplicateLink
		}
		return fmt.Errorf("gormstore: create external link: %w", err)
	}
	link.CreatedAt = row.CreatedAt
	link.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) UpdateExternalLink(ctx context.Context, link *identity.ExternalLink) error {
	row := oauthProviderRowFrom(link)
	result := s.db.WithContext(ctx).Model(&oauthProviderRow{}).Where("id = ?", row.ID).
		Select("*").Omit("id", "created_at").Updates(row)
	if result.Error != nil {
		return fmt.Errorf("gormstore: update external link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) FindCounselorProfile(ctx context.Context, identityID uuid.UUID) (*identity.CounselorProfile, error) {
	var row counselorProfileRow
	err := s.db.WithContext(ctx).Where("user_id = ?", identityID.String()).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: find counselor profile: %w", err)
	}
	return row.toProfile()
}

func (s *Store) SaveCounselorProfile(ctx context.Context, profile *identity.CounselorProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	row := counselorProfileRowFrom(profile)
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("gormstore: save counselor profile: %w", err)
	}
	return nil
}

// InTx runs fn against a transaction-bound store. GORM rolls the transaction
// back when fn returns an error, so a failed uniqueness check inside fn leaves
// no partial rows behind.
func (s *Store) InTx(ctx context.Context, fn func(tx identity.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
