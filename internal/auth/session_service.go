package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/recmind-app/recmind-server/internal/models"
	"github.com/recmind-app/recmind-server/internal/store"
	"github.com/recmind-app/recmind-server/pkg/logger"
	"github.com/recmind-app/recmind-server/pkg/metrics"
)

var (
	// ErrSessionInvalid is returned when a refresh token is missing, malformed,
	// expired, or no longer matches the stored value for the account.
	ErrSessionInvalid = errors.New("session: invalid refresh token")
	// ErrNotVerified prevents session issuance for unverified accounts.
	ErrNotVerified = errors.New("session: account not verified")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	// RotateRefresh issues a new refresh token on every refresh instead of
	// keeping the original alive until logout or expiry.
	RotateRefresh bool
}

// TokenPair represents an access token and refresh token pair. RefreshToken
// is empty on refresh responses unless rotation is enabled.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService drives the login/refresh/logout transitions over the single
// stored refresh token per account.
type SessionService struct {
	users  store.UserStore
	tokens *TokenService
	rotate bool
	log    *zap.Logger
}

// NewSessionService constructs a session manager backed by the user store and
// token service.
func NewSessionService(users store.UserStore, tokens *TokenService, cfg SessionConfig) (*SessionService, error) {
	if users == nil {
		return nil, errors.New("session service: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("session service: token service is required")
	}

	return &SessionService{
		users:  users,
		tokens: tokens,
		rotate: cfg.RotateRefresh,
		log:    logger.WithModule("session"),
	}, nil
}

// Login issues a fresh token pair for a verified account and overwrites the
// stored refresh token, invalidating any prior session.
func (s *SessionService) Login(ctx context.Context, user *models.User) (TokenPair, error) {
	if user == nil || user.ID == "" {
		return TokenPair{}, errors.New("session service: user is required")
	}
	if !user.Verified {
		return TokenPair{}, ErrNotVerified
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: issue access token: %w", err)
	}

	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: issue refresh token: %w", err)
	}

	hadSession := user.RefreshToken != ""
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return TokenPair{}, fmt.Errorf("session service: store refresh token: %w", err)
	}
	user.RefreshToken = refreshToken

	if !hadSession {
		metrics.ActiveSessions.Inc()
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The token
// must verify under the refresh secret and equal the value currently stored
// on the account; anything else fails closed.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrSessionInvalid
	}

	claims, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, ErrSessionInvalid
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return TokenPair{}, ErrSessionInvalid
		}
		return TokenPair{}, fmt.Errorf("session service: load user: %w", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return TokenPair{}, ErrSessionInvalid
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: issue access token: %w", err)
	}

	pair := TokenPair{AccessToken: accessToken}

	if s.rotate {
		rotated, err := s.tokens.IssueRefreshToken(user.ID)
		if err != nil {
			return TokenPair{}, fmt.Errorf("session service: rotate refresh token: %w", err)
		}
		if err := s.users.SetRefreshToken(ctx, user.ID, rotated); err != nil {
			return TokenPair{}, fmt.Errorf("session service: store rotated token: %w", err)
		}
		pair.RefreshToken = rotated
	}

	return pair, nil
}

// Logout clears the stored refresh token. It is best effort: a missing,
// malformed or already superseded token still counts as logged out.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	claims, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		s.log.Debug("logout with unverifiable token", zap.Error(err))
		return
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		s.log.Debug("logout for unknown user", zap.Error(err))
		return
	}

	// Only clear when the cookie still matches; a newer login elsewhere
	// owns the stored token now.
	if user.RefreshToken != refreshToken {
		return
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
		s.log.Warn("failed to clear refresh token", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	metrics.ActiveSessions.Dec()
}
