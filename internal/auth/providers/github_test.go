package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGitHub struct {
	server *httptest.Server

	user   map[string]any
	emails []map[string]any
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()

	fake := &fakeGitHub{}
	mux := http.NewServeMux()

	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gh-access-token",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fake.user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fake.emails)
	})

	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeGitHub) provider(t *testing.T) Provider {
	t.Helper()

	provider, err := NewGitHubProvider(GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/api/auth/github/callback",
		AuthURL:      f.server.URL + "/login/oauth/authorize",
		TokenURL:     f.server.URL + "/login/oauth/access_token",
		APIBaseURL:   f.server.URL,
	})
	require.NoError(t, err)
	return provider
}

func TestNewGitHubProviderValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  GitHubConfig
	}{
		{"missing client id", GitHubConfig{ClientSecret: "secret", RedirectURL: "http://localhost/cb"}},
		{"missing client secret", GitHubConfig{ClientID: "id", RedirectURL: "http://localhost/cb"}},
		{"missing redirect url", GitHubConfig{ClientID: "id", ClientSecret: "secret"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGitHubProvider(tc.cfg)
			require.Error(t, err)
		})
	}
}

func TestGitHubAuthCodeURL(t *testing.T) {
	fake := newFakeGitHub(t)
	provider := fake.provider(t)

	require.Equal(t, "github", provider.Name())

	authURL := provider.AuthCodeURL("state-456")
	require.Contains(t, authURL, fake.server.URL+"/login/oauth/authorize")
	require.Contains(t, authURL, "client_id=client-id")
	require.Contains(t, authURL, "state=state-456")
	require.Contains(t, authURL, "scope=user%3Aemail")
}

func TestGitHubFetchProfile(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.user = map[string]any{
		"id":         int64(4210),
		"login":      "octocat",
		"name":       "Octo Cat",
		"email":      "octo@example.com",
		"avatar_url": "https://avatars.example.com/octocat",
	}

	profile, err := fake.provider(t).FetchProfile(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "github", profile.Provider)
	require.Equal(t, "4210", profile.ID)
	require.Equal(t, "octo@example.com", profile.Email)
	require.Equal(t, "Octo Cat", profile.Name)
	require.Equal(t, "https://avatars.example.com/octocat", profile.Avatar)
}

func TestGitHubFetchProfileEmailFallback(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.user = map[string]any{
		"id":    int64(77),
		"login": "nomail",
	}
	fake.emails = []map[string]any{
		{"email": "secondary@example.com", "primary": false, "verified": true},
		{"email": "unverified@example.com", "primary": true, "verified": false},
		{"email": "primary@example.com", "primary": true, "verified": true},
	}

	profile, err := fake.provider(t).FetchProfile(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "primary@example.com", profile.Email)
	require.Equal(t, "nomail", profile.Name)
}

func TestGitHubFetchProfileNoUsableEmail(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.user = map[string]any{
		"id":    int64(88),
		"login": "ghost",
	}
	fake.emails = []map[string]any{
		{"email": "unverified@example.com", "primary": true, "verified": false},
	}

	_, err := fake.provider(t).FetchProfile(context.Background(), "auth-code")
	require.ErrorIs(t, err, ErrEmailUnavailable)
}

func TestGitHubFetchProfileMissingCode(t *testing.T) {
	fake := newFakeGitHub(t)

	_, err := fake.provider(t).FetchProfile(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCode)
}

func TestRegistry(t *testing.T) {
	fake := newFakeGitHub(t)
	provider := fake.provider(t)

	registry := NewRegistry()
	registry.Register(provider)

	found, ok := registry.Lookup("github")
	require.True(t, ok)
	require.Equal(t, provider, found)

	_, ok = registry.Lookup("gitlab")
	require.False(t, ok)

	require.Equal(t, []string{"github"}, registry.Names())
}
