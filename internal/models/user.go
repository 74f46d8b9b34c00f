package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Authentication providers an account may originate from.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// User describes a platform account. Local accounts carry a bcrypt password
// hash and must verify their email before a session can be issued; federated
// accounts are created verified with a provider identity instead of a password.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	// Password is empty for federated accounts.
	Password string `json:"-"`
	Avatar   string `json:"avatar,omitempty"`

	Provider   string `gorm:"not null;default:local" json:"provider"`
	ProviderID string `json:"-"`

	Verified         bool       `gorm:"default:false" json:"verified"`
	VerificationCode string     `json:"-"`
	CodeExpiresAt    *time.Time `json:"-"`

	// RefreshToken holds the single live refresh token for the account.
	// Overwriting it invalidates every previously issued refresh token.
	RefreshToken string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFederated reports whether the account originated from an OAuth provider.
func (u *User) IsFederated() bool {
	return u.Provider != "" && u.Provider != ProviderLocal
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
