package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/models"
)

// ErrUserNotFound indicates no account matches the supplied email or id.
var ErrUserNotFound = errors.New("store: user not found")

// UserStore is the credential-store contract the auth core depends on.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// SetVerificationCode replaces the pending code and its expiry,
	// superseding any previously active code.
	SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error

	// MarkVerified flips the verified flag and consumes the pending code.
	MarkVerified(ctx context.Context, id string) error

	// SetRefreshToken overwrites the stored refresh token in a single
	// update. An empty token clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
}

// GormUserStore implements UserStore on top of a gorm database handle.
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore builds a store backed by the provided database.
func NewGormUserStore(db *gorm.DB) (*GormUserStore, error) {
	if db == nil {
		return nil, errors.New("user store: db is required")
	}
	return &GormUserStore{db: db}, nil
}

// Create persists a new user record.
func (s *GormUserStore) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user store: user is required")
	}
	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return errors.New("user store: email is required")
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("user store: create user: %w", err)
	}
	return nil
}

// FindByEmail loads a user by exact email match.
func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", strings.TrimSpace(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by email: %w", err)
	}
	return &user, nil
}

// FindByID loads a user by primary key.
func (s *GormUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by id: %w", err)
	}
	return &user, nil
}

// SetVerificationCode stores a fresh pending code for an account.
func (s *GormUserStore) SetVerificationCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	return s.updateOne(ctx, id, map[string]any{
		"verification_code": code,
		"code_expires_at":   expiresAt,
	})
}

// MarkVerified activates the account and nulls the pending code.
func (s *GormUserStore) MarkVerified(ctx context.Context, id string) error {
	return s.updateOne(ctx, id, map[string]any{
		"verified":          true,
		"verification_code": "",
		"code_expires_at":   nil,
	})
}

// SetRefreshToken overwrites the stored refresh token. The write is a single
// UPDATE so concurrent login/logout cannot interleave partial state.
func (s *GormUserStore) SetRefreshToken(ctx context.Context, id, token string) error {
	return s.updateOne(ctx, id, map[string]any{"refresh_token": token})
}

func (s *GormUserStore) updateOne(ctx context.Context, id string, updates map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("user store: id is required")
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("user store: update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
