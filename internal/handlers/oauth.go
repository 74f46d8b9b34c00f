package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
	"github.com/recmind-app/recmind-server/internal/auth/providers"
	"github.com/recmind-app/recmind-server/pkg/crypto"
	appErrors "github.com/recmind-app/recmind-server/pkg/errors"
	"github.com/recmind-app/recmind-server/pkg/logger"
	"github.com/recmind-app/recmind-server/pkg/metrics"
	"github.com/recmind-app/recmind-server/pkg/response"
)

const (
	stateCookieName = "oauth_state"
	stateCookiePath = "/api/auth"
	stateCookieAge  = 600
)

// OAuthHandler drives the authorization-code flows for the registered
// providers. The callback lands on the API origin, so the refresh cookie is
// written cross-site before the browser is bounced back to the frontend with
// the access token.
type OAuthHandler struct {
	registry    *providers.Registry
	resolver    *identity.Resolver
	sessions    *iauth.SessionService
	cookies     CookieSettings
	frontendURL string
	log         *zap.Logger
}

func NewOAuthHandler(registry *providers.Registry, resolver *identity.Resolver, sessions *iauth.SessionService, cookies CookieSettings, frontendURL string) *OAuthHandler {
	cookies.CrossSite = true
	return &OAuthHandler{
		registry:    registry,
		resolver:    resolver,
		sessions:    sessions,
		cookies:     cookies,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         logger.WithModule("handlers.oauth"),
	}
}

// GET /api/auth/:provider
func (h *OAuthHandler) Begin(c *gin.Context) {
	provider, ok := h.registry.Lookup(c.Param("provider"))
	if !ok {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	state, err := crypto.GenerateToken(16)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Internal server error"))
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		Secure:   h.cookies.secure(),
		SameSite: http.SameSiteNoneMode,
	})

	c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// GET /api/auth/:provider/callback
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider, ok := h.registry.Lookup(c.Param("provider"))
	if !ok {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	state := c.Query("state")
	storedState, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != storedState {
		h.fail(c, appErrors.New("INVALID_STATE", "OAuth state verification failed", http.StatusUnauthorized))
		return
	}

	ctx := requestContext(c)

	profile, err := provider.FetchProfile(ctx, c.Query("code"))
	if err != nil {
		h.log.Warn("profile fetch failed",
			zap.String("provider", provider.Name()),
			zap.Error(err))
		h.fail(c, translateAuthError(err))
		return
	}

	user, err := h.resolver.ResolveFederated(ctx, identity.FederatedIdentity{
		Provider:   profile.Provider,
		ProviderID: profile.ID,
		Email:      profile.Email,
		Name:       profile.Name,
		Avatar:     profile.Avatar,
	})
	if err != nil {
		h.log.Warn("federated resolve failed",
			zap.String("provider", provider.Name()),
			zap.Error(err))
		h.fail(c, translateAuthError(err))
		return
	}

	pair, err := h.sessions.Login(ctx, user)
	if err != nil {
		h.fail(c, translateAuthError(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	setRefreshCookie(c, pair.RefreshToken, h.cookies)

	target := h.frontendURL + "/oauth-success?token=" + url.QueryEscape(pair.AccessToken)
	c.Redirect(http.StatusFound, target)
}

// fail answers the callback with the mapped error status. Only the success
// leg redirects back to the frontend; failed exchanges stay on the API origin.
func (h *OAuthHandler) fail(c *gin.Context, err error) {
	metrics.AuthAttempts.WithLabelValues("failure").Inc()
	response.Error(c, err)
}
