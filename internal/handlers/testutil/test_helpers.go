package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/api"
	"github.com/recmind-app/recmind-server/internal/app"
	iauth "github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
	"github.com/recmind-app/recmind-server/internal/auth/providers"
	dbtestutil "github.com/recmind-app/recmind-server/internal/database/testutil"
	"github.com/recmind-app/recmind-server/internal/store"
	"github.com/recmind-app/recmind-server/pkg/logger"
	"github.com/recmind-app/recmind-server/pkg/response"
)

// CodeRecorder captures verification codes instead of sending email.
type CodeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func (r *CodeRecorder) SendCode(_ context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = make(map[string]string)
	}
	r.codes[email] = code
	return nil
}

// CodeFor returns the last code sent to the given address.
func (r *CodeRecorder) CodeFor(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[email]
}

// Env encapsulates a fully-wired API instance backed by an in-memory database.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Tokens *iauth.TokenService
	Codes  *CodeRecorder
}

// EnvOption adjusts the environment configuration before wiring.
type EnvOption func(*app.Config, *api.Deps)

// WithConfig mutates the app configuration used to build the router.
func WithConfig(mutate func(*app.Config)) EnvOption {
	return func(cfg *app.Config, _ *api.Deps) {
		mutate(cfg)
	}
}

// WithProviders installs an OAuth provider registry.
func WithProviders(registry *providers.Registry) EnvOption {
	return func(_ *app.Config, deps *api.Deps) {
		deps.Providers = registry
	}
}

// NewEnv provisions a fresh handler test environment.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)
	require.NoError(t, logger.Init("error"))

	db := dbtestutil.MustOpenTestDB(t)

	cfg := &app.Config{}
	cfg.Server.FrontendURL = "http://localhost:3000"
	cfg.Auth.JWT.AccessSecret = "test-access-secret"
	cfg.Auth.JWT.RefreshSecret = "test-refresh-secret"
	cfg.Auth.JWT.Issuer = "recmind-test"
	cfg.Recommender.BaseURL = "http://127.0.0.1:0"

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	require.NoError(t, err)

	users, err := store.NewGormUserStore(db)
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(users, tokens, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	codes := &CodeRecorder{}
	resolver, err := identity.NewResolver(users, codes, cfg.Auth.ResolverConfig())
	require.NoError(t, err)

	deps := api.Deps{
		DB:       db,
		Tokens:   tokens,
		Sessions: sessions,
		Resolver: resolver,
		Users:    users,
	}

	for _, opt := range opts {
		opt(cfg, &deps)
	}

	router, err := api.NewRouter(cfg, deps)
	require.NoError(t, err)

	return &Env{T: t, DB: db, Router: router, Tokens: tokens, Codes: codes}
}

// DoJSON performs a JSON request against the wired router.
func (e *Env) DoJSON(method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Decode unmarshals the standard response envelope.
func (e *Env) Decode(w *httptest.ResponseRecorder) response.Response {
	e.T.Helper()

	var payload response.Response
	require.NoError(e.T, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

// Data returns the response data as a map.
func (e *Env) Data(w *httptest.ResponseRecorder) map[string]any {
	e.T.Helper()

	payload := e.Decode(w)
	data, ok := payload.Data.(map[string]any)
	require.True(e.T, ok, "expected object data, got %T", payload.Data)
	return data
}

// RefreshCookie extracts the refresh cookie from a response, or nil.
func RefreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "refresh_token" {
			return cookie
		}
	}
	return nil
}
