package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/app"
	iauth "github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
	"github.com/recmind-app/recmind-server/internal/auth/providers"
	"github.com/recmind-app/recmind-server/internal/handlers"
	"github.com/recmind-app/recmind-server/internal/middleware"
	"github.com/recmind-app/recmind-server/internal/store"
)

// Deps bundles the wired services the router mounts handlers over.
type Deps struct {
	DB        *gorm.DB
	Tokens    *iauth.TokenService
	Sessions  *iauth.SessionService
	Resolver  *identity.Resolver
	Users     store.UserStore
	Providers *providers.Registry
	Upstream  *http.Client
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(cfg *app.Config, deps Deps) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Tokens == nil || deps.Sessions == nil || deps.Resolver == nil || deps.Users == nil {
		return nil, fmt.Errorf("auth services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.FrontendURL))
	if cfg.Server.RateLimit.Enabled {
		window := cfg.Server.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(cfg.Server.RateLimit.MaxRequests, window))
	}

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.DB))

	cookies := handlers.CookieSettings{
		Secure: isHTTPS(cfg.Server.FrontendURL),
		MaxAge: deps.Tokens.RefreshTTL(),
	}

	authHandler := handlers.NewAuthHandler(deps.Resolver, deps.Sessions, deps.Users, cookies)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
	}

	// OAuth code-exchange flows share the /api/auth prefix so the refresh
	// cookie written on the callback stays within the cookie's path scope.
	if deps.Providers != nil && len(deps.Providers.Names()) > 0 {
		oauthHandler := handlers.NewOAuthHandler(deps.Providers, deps.Resolver, deps.Sessions, cookies, cfg.Server.FrontendURL)
		auth.GET("/:provider", oauthHandler.Begin)
		auth.GET("/:provider/callback", oauthHandler.Callback)
	}

	// Protected routes
	requireAuth := middleware.Auth(deps.Tokens)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	recommendHandler := handlers.NewRecommendHandler(cfg.Recommender.BaseURL, deps.Upstream)
	api.GET("/recommend", recommendHandler.Recommend)
	api.POST("/llm/suggest", recommendHandler.Suggest)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func isHTTPS(url string) bool {
	return len(url) >= 8 && url[:8] == "https://"
}
