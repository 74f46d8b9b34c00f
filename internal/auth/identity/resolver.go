package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recmind-app/recmind-server/internal/models"
	"github.com/recmind-app/recmind-server/internal/store"
	"github.com/recmind-app/recmind-server/pkg/crypto"
	"github.com/recmind-app/recmind-server/pkg/logger"
)

// DefaultCodeTTL matches the lifetime promised in the verification email.
const DefaultCodeTTL = 10 * time.Minute

const codeDigits = 6

var (
	// ErrEmailTaken is returned when registering an email that already has a
	// verified account.
	ErrEmailTaken = errors.New("identity: email already registered")
	// ErrInvalidEmail signals a verification attempt for an unknown email.
	ErrInvalidEmail = errors.New("identity: invalid email")
	// ErrInvalidCode signals a verification code mismatch.
	ErrInvalidCode = errors.New("identity: invalid code")
	// ErrCodeExpired signals the pending code is past its lifetime.
	ErrCodeExpired = errors.New("identity: code expired")
	// ErrInvalidCredentials covers unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrNotVerified rejects authentication for unverified accounts.
	ErrNotVerified = errors.New("identity: email not verified")
	// ErrProviderMismatch is returned in strict binding mode when an email
	// owned by one provider is claimed through another.
	ErrProviderMismatch = errors.New("identity: account belongs to a different provider")
)

// CodeSender delivers a verification code to an email address.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// FederatedIdentity is the provider profile handed over after an OAuth
// exchange completes.
type FederatedIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	Avatar     string
}

// Config describes tunable behaviour for the Resolver.
type Config struct {
	CodeTTL time.Duration
	Clock   func() time.Time

	// BindProvider refuses federated logins whose provider differs from the
	// one recorded on the account. Off by default: an email may be claimed by
	// any provider that proves control of it.
	BindProvider bool
}

// Resolver turns credentials or provider profiles into canonical user records.
type Resolver struct {
	users   store.UserStore
	sender  CodeSender
	codeTTL time.Duration
	now     func() time.Time
	bind    bool
	log     *zap.Logger
}

// NewResolver constructs a Resolver backed by the given user store and
// verification-code sender.
func NewResolver(users store.UserStore, sender CodeSender, cfg Config) (*Resolver, error) {
	if users == nil {
		return nil, errors.New("identity resolver: user store is required")
	}
	if sender == nil {
		return nil, errors.New("identity resolver: code sender is required")
	}

	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &Resolver{
		users:   users,
		sender:  sender,
		codeTTL: ttl,
		now:     now,
		bind:    cfg.BindProvider,
		log:     logger.WithModule("identity"),
	}, nil
}

// RegisterLocal creates an unverified local account and dispatches a
// verification code. Re-registering an unverified email resends a fresh code
// instead of creating a duplicate; a verified email is a conflict. The bool
// result reports whether a new record was created.
func (r *Resolver) RegisterLocal(ctx context.Context, name, email, password string) (*models.User, bool, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, false, errors.New("identity resolver: name, email and password are required")
	}

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		return nil, false, fmt.Errorf("identity resolver: lookup email: %w", err)
	}

	if existing != nil {
		if existing.Verified {
			return nil, false, ErrEmailTaken
		}
		return existing, false, r.issueCode(ctx, existing)
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("identity resolver: hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Provider: models.ProviderLocal,
	}
	if err := r.users.Create(ctx, user); err != nil {
		return nil, false, err
	}

	return user, true, r.issueCode(ctx, user)
}

func (r *Resolver) issueCode(ctx context.Context, user *models.User) error {
	code, err := crypto.GenerateNumericCode(codeDigits)
	if err != nil {
		return fmt.Errorf("identity resolver: generate code: %w", err)
	}

	expires := r.now().Add(r.codeTTL)
	if err := r.users.SetVerificationCode(ctx, user.ID, code, expires); err != nil {
		return fmt.Errorf("identity resolver: store code: %w", err)
	}
	user.VerificationCode = code
	user.CodeExpiresAt = &expires

	if err := r.sender.SendCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("identity resolver: send code: %w", err)
	}
	return nil
}

// VerifyEmail activates an account when the submitted code exactly matches
// the pending one and is still within its lifetime. Success consumes the code.
func (r *Resolver) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	user, err := r.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidEmail
		}
		return nil, fmt.Errorf("identity resolver: lookup email: %w", err)
	}

	if user.VerificationCode == "" || user.VerificationCode != code {
		return nil, ErrInvalidCode
	}
	if user.CodeExpiresAt != nil && user.CodeExpiresAt.Before(r.now()) {
		return nil, ErrCodeExpired
	}

	if err := r.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("identity resolver: mark verified: %w", err)
	}

	user.Verified = true
	user.VerificationCode = ""
	user.CodeExpiresAt = nil
	return user, nil
}

// AuthenticateLocal checks a password pair against a stored local account.
// The password and the verified flag are enforced independently: a correct
// password on an unverified account is still rejected.
func (r *Resolver) AuthenticateLocal(ctx context.Context, email, password string) (*models.User, error) {
	user, err := r.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("identity resolver: lookup email: %w", err)
	}

	if user.Password == "" || !crypto.VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrNotVerified
	}

	return user, nil
}

// ResolveFederated maps an OAuth provider profile onto a user record,
// creating a verified account on first sight of the email.
func (r *Resolver) ResolveFederated(ctx context.Context, id FederatedIdentity) (*models.User, error) {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return nil, errors.New("identity resolver: federated identity has no email")
	}

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("identity resolver: lookup email: %w", err)
	}

	if existing != nil {
		if r.bind && existing.Provider != id.Provider {
			return nil, ErrProviderMismatch
		}
		return existing, nil
	}

	user := &models.User{
		Name:       strings.TrimSpace(id.Name),
		Email:      email,
		Avatar:     id.Avatar,
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		Verified:   true,
	}
	if user.Name == "" {
		user.Name = email
	}

	if err := r.users.Create(ctx, user); err != nil {
		return nil, err
	}

	r.log.Info("created federated account",
		zap.String("provider", id.Provider),
		zap.String("user_id", user.ID),
	)
	return user, nil
}
