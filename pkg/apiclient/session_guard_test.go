package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeAPI serves the response envelope the real server uses, with a single
// valid bearer token and a counted refresh endpoint.
type fakeAPI struct {
	mu           sync.Mutex
	validToken   string
	refreshOK    bool
	refreshDelay time.Duration
	refreshCalls atomic.Int64
	lastBody     atomic.Value
}

func newFakeAPI(validToken string) *fakeAPI {
	return &fakeAPI{validToken: validToken, refreshOK: true}
}

func (f *fakeAPI) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validToken
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.refreshDelay > 0 {
			time.Sleep(f.refreshDelay)
		}
		if !f.refreshOK {
			writeEnvelope(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "UNAUTHORIZED", "message": "Session expired"},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]string{"accessToken": f.currentToken()},
		})
	})

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			f.lastBody.Store(string(body))
		}
		if r.Header.Get("Authorization") != "Bearer "+f.currentToken() {
			writeEnvelope(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "UNAUTHORIZED", "message": "Invalid or expired token"},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"user": map[string]string{"id": "user-1"}},
		})
	})

	return mux
}

func writeEnvelope(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func newGuardClient(t *testing.T, baseURL string, store TokenStore, onLogout func()) *Client {
	t.Helper()
	opts := []Option{WithTokenStore(store), WithTimeout(5 * time.Second)}
	if onLogout != nil {
		opts = append(opts, WithOnLogout(onLogout))
	}
	client, err := NewClient(baseURL, opts...)
	require.NoError(t, err)
	return client
}

func TestGuardAttachesBearerToken(t *testing.T) {
	api := newFakeAPI("valid-token")
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.SetAccessToken("valid-token"))
	client := newGuardClient(t, srv.URL, store, nil)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestGuardRefreshesAndReplaysOn401(t *testing.T) {
	api := newFakeAPI("fresh-token")
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.SetAccessToken("stale-token"))
	client := newGuardClient(t, srv.URL, store, nil)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Equal(t, "fresh-token", store.AccessToken())
}

func TestGuardSingleRefreshUnderConcurrent401s(t *testing.T) {
	api := newFakeAPI("fresh-token")
	api.refreshDelay = 50 * time.Millisecond
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.SetAccessToken("stale-token"))
	client := newGuardClient(t, srv.URL, store, nil)

	const workers = 25
	var group errgroup.Group
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			_, err := client.Me(context.Background())
			return err
		})
	}
	require.NoError(t, group.Wait())

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Equal(t, "fresh-token", store.AccessToken())
}

func TestGuardReplaysRequestBody(t *testing.T) {
	api := newFakeAPI("fresh-token")
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.SetAccessToken("stale-token"))
	client := newGuardClient(t, srv.URL, store, nil)

	_, err := client.Suggest(context.Background(), []SuggestionItem{
		{ID: "res-1", Name: "Effective Go"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, api.refreshCalls.Load())

	body, _ := api.lastBody.Load().(string)
	require.True(t, strings.Contains(body, "Effective Go"), "replayed request lost its body: %q", body)
}

func TestGuardRefreshFailureLogsOut(t *testing.T) {
	api := newFakeAPI("fresh-token")
	api.refreshOK = false
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	var loggedOut atomic.Int64
	store := NewMemoryTokenStore()
	require.NoError(t, store.SetAccessToken("stale-token"))
	client := newGuardClient(t, srv.URL, store, func() { loggedOut.Add(1) })

	_, err := client.Me(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	require.EqualValues(t, 1, loggedOut.Load())
	require.Empty(t, store.AccessToken())
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestGuardRefreshEndpointNeverTriggersItself(t *testing.T) {
	api := newFakeAPI("fresh-token")
	api.refreshOK = false
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	store := NewMemoryTokenStore()
	client := newGuardClient(t, srv.URL, store, nil)

	err := client.Refresh(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestNewSessionGuardValidation(t *testing.T) {
	_, err := NewSessionGuard(GuardConfig{RefreshURL: "http://localhost/api/auth/refresh"})
	require.Error(t, err)

	_, err = NewSessionGuard(GuardConfig{Store: NewMemoryTokenStore(), RefreshURL: "/relative"})
	require.Error(t, err)
}
