package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/api"
	"github.com/recmind-app/recmind-server/internal/app"
	"github.com/recmind-app/recmind-server/internal/app/maintenance"
	iauth "github.com/recmind-app/recmind-server/internal/auth"
	"github.com/recmind-app/recmind-server/internal/auth/identity"
	"github.com/recmind-app/recmind-server/internal/auth/providers"
	"github.com/recmind-app/recmind-server/internal/database"
	"github.com/recmind-app/recmind-server/internal/services"
	"github.com/recmind-app/recmind-server/internal/store"
	"github.com/recmind-app/recmind-server/pkg/logger"
	"github.com/recmind-app/recmind-server/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, auth services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; verification emails will not be delivered")
	}

	mailerOpts := []services.VerificationMailerOption{}
	if cfg.Auth.Verification.CodeTTL > 0 {
		mailerOpts = append(mailerOpts, services.WithCodeValidity(cfg.Auth.Verification.CodeTTL))
	}
	codeSender, err := services.NewVerificationMailer(mailer, mailerOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise verification mailer: %w", err)
	}

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	users, err := store.NewGormUserStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user store: %w", err)
	}

	sessions, err := iauth.NewSessionService(users, tokens, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	resolver, err := identity.NewResolver(users, codeSender, cfg.Auth.ResolverConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise identity resolver: %w", err)
	}

	registry, err := buildProviderRegistry(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Maintenance.Enabled {
		opts := []maintenance.Option{}
		if strings.TrimSpace(cfg.Maintenance.CodeSchedule) != "" {
			opts = append(opts, maintenance.WithCodeSchedule(cfg.Maintenance.CodeSchedule))
		}
		stack.Cleaner = maintenance.NewCleaner(stack.DB, opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	upstream := &http.Client{Timeout: cfg.Recommender.Timeout}

	stack.Router, err = api.NewRouter(cfg, api.Deps{
		DB:        stack.DB,
		Tokens:    tokens,
		Sessions:  sessions,
		Resolver:  resolver,
		Users:     users,
		Providers: registry,
		Upstream:  upstream,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildProviderRegistry wires enabled OAuth providers. Google performs OIDC
// discovery at startup, so a misconfigured client fails fast here.
func buildProviderRegistry(ctx context.Context, cfg *app.Config, log *zap.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	if google := cfg.Auth.OAuth.Google; google.Enabled {
		provider, err := providers.NewGoogleProvider(ctx, providers.GoogleConfig{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURL:  google.RedirectURL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise google provider: %w", err)
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
		log.Info("oauth provider enabled", zap.String("provider", provider.Name()))
	}

	if github := cfg.Auth.OAuth.GitHub; github.Enabled {
		provider, err := providers.NewGitHubProvider(providers.GitHubConfig{
			ClientID:     github.ClientID,
			ClientSecret: github.ClientSecret,
			RedirectURL:  github.RedirectURL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise github provider: %w", err)
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
		log.Info("oauth provider enabled", zap.String("provider", provider.Name()))
	}

	return registry, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := database.FromAppConfig(cfg.Database)

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
