package handlers

import (
	"errors"
	"net/http"

	iauth "github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
	"github.com/recmind-app/recmind-server/internal/auth/providers"
	appErrors "github.com/recmind-app/recmind-server/pkg/errors"
)

// translateAuthError maps domain errors onto client-facing AppErrors.
// Anything unrecognised becomes an opaque 500 so internals never leak.
func translateAuthError(err error) error {
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		return appErrors.ErrEmailTaken
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidCode):
		return appErrors.ErrInvalidVerification
	case errors.Is(err, identity.ErrCodeExpired):
		return appErrors.NewBadRequest("Verification code has expired")
	case errors.Is(err, identity.ErrInvalidCredentials):
		return appErrors.ErrInvalidCredentials
	case errors.Is(err, identity.ErrNotVerified), errors.Is(err, iauth.ErrNotVerified):
		return appErrors.ErrEmailNotVerified
	case errors.Is(err, identity.ErrProviderMismatch):
		return appErrors.New("PROVIDER_MISMATCH", "This email is linked to a different sign-in method", http.StatusConflict)
	case errors.Is(err, iauth.ErrSessionInvalid):
		return appErrors.ErrUnauthorized
	case errors.Is(err, providers.ErrMissingCode):
		return appErrors.NewBadRequest("Authorization code is required")
	case errors.Is(err, providers.ErrEmailUnavailable):
		return appErrors.New("EMAIL_UNAVAILABLE", "No verified email available from the provider", http.StatusBadRequest)
	case errors.Is(err, providers.ErrTokenExchange), errors.Is(err, providers.ErrProfileFetch):
		return appErrors.ErrUpstream.WithInternal(err)
	default:
		return appErrors.Wrap(err, "Internal server error")
	}
}
