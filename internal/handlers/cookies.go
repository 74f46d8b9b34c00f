package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// RefreshCookieName is the cookie carrying the refresh token.
	RefreshCookieName = "refresh_token"
	// RefreshCookiePath scopes the cookie to the auth endpoints so it never
	// rides along on ordinary API calls.
	RefreshCookiePath = "/api/auth"
)

// CookieSettings control how the refresh cookie is written.
type CookieSettings struct {
	Domain string
	Secure bool
	// CrossSite switches SameSite to None for flows that land on the API from
	// a different origin, such as the OAuth callback redirect. None requires
	// Secure, which is forced on in that case.
	CrossSite bool
	MaxAge    time.Duration
}

func (s CookieSettings) sameSite() http.SameSite {
	if s.CrossSite {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (s CookieSettings) secure() bool {
	return s.Secure || s.CrossSite
}

// setRefreshCookie writes the httpOnly refresh cookie.
func setRefreshCookie(c *gin.Context, token string, s CookieSettings) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     RefreshCookiePath,
		Domain:   s.Domain,
		MaxAge:   int(s.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure(),
		SameSite: s.sameSite(),
	})
}

// clearRefreshCookie expires the refresh cookie.
func clearRefreshCookie(c *gin.Context, s CookieSettings) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		Domain:   s.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure(),
		SameSite: s.sameSite(),
	})
}
