package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
	"github.com/recmind-app/recmind-server/internal/middleware"
	"github.com/recmind-app/recmind-server/internal/store"
	appErrors "github.com/recmind-app/recmind-server/pkg/errors"
	"github.com/recmind-app/recmind-server/pkg/metrics"
	"github.com/recmind-app/recmind-server/pkg/response"
)

// AuthHandler manages local registration, verification and the session
// lifecycle (login/refresh/logout/me).
type AuthHandler struct {
	resolver *identity.Resolver
	sessions *iauth.SessionService
	users    store.UserStore
	cookies  CookieSettings
}

func NewAuthHandler(resolver *identity.Resolver, sessions *iauth.SessionService, users store.UserStore, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{resolver: resolver, sessions: sessions, users: users, cookies: cookies}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, created, err := h.resolver.RegisterLocal(requestContext(c), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			metrics.Registrations.WithLabelValues("conflict").Inc()
		}
		response.Error(c, translateAuthError(err))
		return
	}

	if created {
		metrics.Registrations.WithLabelValues("created").Inc()
	} else {
		metrics.Registrations.WithLabelValues("resent").Inc()
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":              "Verification code sent to your email",
		"requiresVerification": true,
		"email":                user.Email,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.resolver.VerifyEmail(requestContext(c), req.Email, req.Code)
	if err != nil {
		response.Error(c, translateAuthError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Email verified successfully",
		"user":    publicUser(user),
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	user, err := h.resolver.AuthenticateLocal(ctx, req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, translateAuthError(err))
		return
	}

	pair, err := h.sessions.Login(ctx, user)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, translateAuthError(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	setRefreshCookie(c, pair.RefreshToken, h.cookies)

	response.Success(c, http.StatusOK, gin.H{
		"accessToken": pair.AccessToken,
		"user":        publicUser(user),
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie(RefreshCookieName)
	if err != nil || token == "" {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	pair, err := h.sessions.Refresh(requestContext(c), token)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	if pair.RefreshToken != "" {
		setRefreshCookie(c, pair.RefreshToken, h.cookies)
	}

	response.Success(c, http.StatusOK, gin.H{"accessToken": pair.AccessToken})
}

// POST /api/auth/logout
//
// Logout never fails from the client's point of view: the cookie is cleared
// and 200 returned even when no valid session exists.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(RefreshCookieName); err == nil && token != "" {
		h.sessions.Logout(requestContext(c), token)
	}

	clearRefreshCookie(c, h.cookies)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.users.FindByID(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.Error(c, appErrors.Wrap(err, "Internal server error"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": publicUser(user)})
}
