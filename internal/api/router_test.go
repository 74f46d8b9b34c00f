package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recmind-app/recmind-server/internal/api"
	"github.com/recmind-app/recmind-server/internal/app"
	"github.com/recmind-app/recmind-server/internal/handlers/testutil"
)

func TestNewRouterValidation(t *testing.T) {
	_, err := api.NewRouter(nil, api.Deps{})
	require.Error(t, err)

	_, err = api.NewRouter(&app.Config{}, api.Deps{})
	require.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.DoJSON(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", env.Data(w)["status"])
	require.Equal(t, "ok", env.Data(w)["database"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "go_goroutines") ||
		strings.Contains(w.Body.String(), "recmind_"))
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.DoJSON(http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, env.Decode(w).Success)
}

func TestOAuthRoutesAbsentWithoutProviders(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.DoJSON(http.MethodGet, "/api/auth/google", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
