package app

import (
	"github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
)

// TokenServiceConfig converts AuthConfig into the parameters expected by the token service.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	accessTTL := c.JWT.AccessTTL
	if accessTTL <= 0 {
		accessTTL = auth.DefaultAccessTokenTTL
	}
	refreshTTL := c.JWT.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = auth.DefaultRefreshTokenTTL
	}

	return auth.TokenConfig{
		AccessSecret:  c.JWT.AccessSecret,
		RefreshSecret: c.JWT.RefreshSecret,
		Issuer:        c.JWT.Issuer,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	return auth.SessionConfig{
		RotateRefresh: c.RotateRefresh,
	}
}

// ResolverConfig converts AuthConfig into identity resolver parameters.
func (c AuthConfig) ResolverConfig() identity.Config {
	ttl := c.Verification.CodeTTL
	if ttl <= 0 {
		ttl = identity.DefaultCodeTTL
	}

	return identity.Config{
		CodeTTL:      ttl,
		BindProvider: c.BindProvider,
	}
}
