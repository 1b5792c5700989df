package gormstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellmind/authkit/identity"
)

// Row types mirror the relational schema. IDs are stored as canonical UUID
// strings so the same schema works on Postgres and SQLite.

type userRow struct {
	ID                string     `gorm:"column:id;primaryKey;size:36"`
	Email             string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash      string     `gorm:"column:password_hash"`
	FirstName         string     `gorm:"column:first_name"`
	LastName          string     `gorm:"column:last_name"`
	Phone             string     `gorm:"column:phone"`
	Timezone          string     `gorm:"column:timezone;default:UTC"`
	ProfilePictureURL string     `gorm:"column:profile_picture_url"`
	Role              string     `gorm:"column:role;not null;default:user"`
	IsActive          bool       `gorm:"column:is_active;default:true"`
	IsVerified        bool       `gorm:"column:is_verified;default:false"`
	LastLogin         *time.Time `gorm:"column:last_login"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
	DeletedAt         *time.Time `gorm:"column:deleted_at"`
}

func (userRow) TableName() string { return "users" }

type oauthProviderRow struct {
	ID            string     `gorm:"column:id;primaryKey;size:36"`
	UserID        string     `gorm:"column:user_id;index;not null;size:36"`
	Provider      string     `gorm:"column:provider;not null;uniqueIndex:idx_provider_identity"`
	ProviderID    string     `gorm:"column:provider_id;not null;uniqueIndex:idx_provider_identity"`
	ProviderEmail string     `gorm:"column:provider_email"`
	AccessToken   string     `gorm:"column:access_token"`
	RefreshToken  string     `gorm:"column:refresh_token"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (oauthProviderRow) TableName() string { return "oauth_providers" }

type counselorProfileRow struct {
	ID              string    `gorm:"column:id;primaryKey;size:36"`
	UserID          string    `gorm:"column:user_id;uniqueIndex;not null;size:36"`
	LicenseNumber   string    `gorm:"column:license_number"`
	Specialties     []string  `gorm:"column:specialties;serializer:json"`
	Qualifications  []string  `gorm:"column:qualifications;serializer:json"`
	Languages       []string  `gorm:"column:languages;serializer:json"`
	ExperienceYears int       `gorm:"column:experience_years"`
	HourlyRate      float64   `gorm:"column:hourly_rate"`
	Bio             string    `gorm:"column:bio"`
	IsAvailable     bool      `gorm:"column:is_available;default:true"`
	Rating          float64   `gorm:"column:rating"`
	TotalReviews    int       `gorm:"column:total_reviews"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (counselorProfileRow) TableName() string { return "counselor_profiles" }

func userRowFrom(ident *identity.Identity) *userRow {
	return &userRow{
		ID:                ident.ID.String(),
		Email:             ident.Email,
		PasswordHash:      ident.PasswordHash,
		FirstName:         ident.FirstName,
		LastName:          ident.LastName,
		Phone:             ident.Phone,
		Timezone:          ident.Timezone,
		ProfilePictureURL: ident.ProfilePictureURL,
		Role:              string(ident.Role),
		IsActive:          ident.IsActive,
		IsVerified:        ident.IsVerified,
		LastLogin:         ident.LastLogin,
		CreatedAt:         ident.CreatedAt,
		UpdatedAt:         ident.UpdatedAt,
		DeletedAt:         ident.DeletedAt,
	}
}

func (r *userRow) toIdentity() (*identity.Identity, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("gormstore: corrupt user id %q: %w", r.ID, err)
	}
	return &identity.Identity{
		ID:                id,
		Email:             r.Email,
		PasswordHash:      r.PasswordHash,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		Phone:             r.Phone,
		Timezone:          r.Timezone,
		ProfilePictureURL: r.ProfilePictureURL,
		Role:              identity.Role(r.Role),
		IsActive:          r.IsActive,
		IsVerified:        r.IsVerified,
		LastLogin:         r.LastLogin,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		DeletedAt:         r.DeletedAt,
	}, nil
}

func oauthProviderRowFrom(link *identity.ExternalLink) *oauthProviderRow {
	return &oauthProviderRow{
		ID:            link.ID.String(),
		UserID:        link.IdentityID.String(),
		Provider:      link.Provider,
		ProviderID:    link.ProviderID,
		ProviderEmail: link.ProviderEmail,
		AccessToken:   link.AccessToken,
		RefreshToken:  link.RefreshToken,
		ExpiresAt:     link.ExpiresAt,
		CreatedAt:     link.CreatedAt,
		UpdatedAt:     link.UpdatedAt,
	}
}

func (r *oauthProviderRow) toLink() (*identity.ExternalLink, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("gormstore: corrupt link id %q: %w", r.ID, err)
	}
	owner, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("gormstore: corrupt link owner %q: %w", r.UserID, err)
	}
	return &identity.ExternalLink{
		ID:            id,
		IdentityID:    owner,
		Provider:      r.Provider,
		ProviderID:    r.ProviderID,
		ProviderEmail: r.ProviderEmail,
		AccessToken:   r.AccessToken,
		RefreshToken:  r.RefreshToken,
		ExpiresAt:     r.ExpiresAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func counselorProfileRowFrom(profile *identity.CounselorProfile) *counselorProfileRow {
	return &counselorProfileRow{
		ID:              profile.ID.String(),
		UserID:          profile.IdentityID.String(),
		LicenseNumber:   profile.LicenseNumber,
		Specialties:     profile.Specialties,
		Qualifications:  profile.Qualifications,
		Languages:       profile.Languages,
		ExperienceYears: profile.ExperienceYears,
		HourlyRate:      profile.HourlyRate,
		Bio:             profile.Bio,
		IsAvailable:     profile.IsAvailable,
		Rating:          profile.Rating,
		TotalReviews:    profile.TotalReviews,
		CreatedAt:       profile.CreatedAt,
		UpdatedAt:       profile.UpdatedAt,
	}
}

func (r *counselorProfileRow) toProfile() (*identity.CounselorProfile, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("gormstore: corrupt profile id %q: %w", r.ID, err)
	}
	owner, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("gormstore: corrupt profile owner %q: %w", r.UserID, err)
	}
	return &identity.CounselorProfile{
		ID:              id,
		IdentityID:      owner,
		LicenseNumber:   r.LicenseNumber,
		Specialties:     r.Specialties,
		Qualifications:  r.Qualifications,
		Languages:       r.Languages,
		ExperienceYears: r.ExperienceYears,
		HourlyRate:      r.HourlyRate,
		Bio:             r.Bio,
		IsAvailable:     r.IsAvailable,
		Rating:          r.Rating,
		TotalReviews:    r.TotalReviews,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}
