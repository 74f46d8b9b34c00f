package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newFakeDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/token",
			"jwks_uri":               server.URL + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	})

	return server
}

func TestNewGoogleProviderValidation(t *testing.T) {
	server := newFakeDiscoveryServer(t)

	cases := []struct {
		name string
		cfg  GoogleConfig
	}{
		{"missing client id", GoogleConfig{ClientSecret: "secret", RedirectURL: "http://localhost/cb", IssuerURL: server.URL}},
		{"missing client secret", GoogleConfig{ClientID: "id", RedirectURL: "http://localhost/cb", IssuerURL: server.URL}},
		{"missing redirect url", GoogleConfig{ClientID: "id", ClientSecret: "secret", IssuerURL: server.URL}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGoogleProvider(context.Background(), tc.cfg)
			require.Error(t, err)
		})
	}
}

func TestNewGoogleProviderDiscovery(t *testing.T) {
	server := newFakeDiscoveryServer(t)

	provider, err := NewGoogleProvider(context.Background(), GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/api/auth/google/callback",
		IssuerURL:    server.URL,
	})
	require.NoError(t, err)
	require.Equal(t, "google", provider.Name())

	authURL := provider.AuthCodeURL("state-123")
	require.Contains(t, authURL, server.URL+"/authorize")
	require.Contains(t, authURL, "client_id=client-id")
	require.Contains(t, authURL, "state=state-123")
	require.Contains(t, authURL, "scope=openid+profile+email")
}

func TestGoogleFetchProfileMissingCode(t *testing.T) {
	server := newFakeDiscoveryServer(t)

	provider, err := NewGoogleProvider(context.Background(), GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/cb",
		IssuerURL:    server.URL,
	})
	require.NoError(t, err)

	_, err = provider.FetchProfile(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingCode)
}
