package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse authorization level carried on an identity and embedded
// into issued tokens.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCounselor Role = "counselor"
	RoleUser      Role = "user"
	RoleGuest     Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCounselor, RoleUser, RoleGuest:
		return true
	}
	return false
}

// Identity is the local account record. PasswordHash is empty for accounts
// created through an external provider (OAuth-only accounts).
//
// DeletedAt is a soft-deletion marker: the row stays in storage but the
// account must never authenticate while DeletedAt is non-nil.
type Identity struct {
	ID                uuid.UUID
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Phone             string
	Timezone          string
	ProfilePictureURL string
	Role              Role
	IsActive          bool
	IsVerified        bool
	LastLogin         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// Authenticatable reports whether the identity may log in or be issued
// tokens. Soft-deleted and deactivated accounts both fail this check.
func (i *Identity) Authenticatable() bool {
	return i != nil && i.DeletedAt == nil && i.IsActive
}

// ExternalLink ties an external-provider identity to exactly one local
// Identity. The (Provider, ProviderID) pair is globally unique; that
// uniqueness is the enforcement boundary against duplicate-account races.
type ExternalLink struct {
	ID            uuid.UUID
	IdentityID    uuid.UUID
	Provider      string
	ProviderID    string
	ProviderEmail string
	AccessToken   string
	RefreshToken  string
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CounselorProfile is the optional one-per-identity professional profile.
type CounselorProfile struct {
	ID              uuid.UUID
	IdentityID      uuid.UUID
	LicenseNumber   string
	Specialties     []string
	Qualifications  []string
	Languages       []string
	ExperienceYears int
	HourlyRate      float64
	Bio             string
	IsAvailable     bool
	Rating          float64
	TotalReviews    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
