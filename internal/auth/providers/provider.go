package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrMissingCode signals a callback without an authorization code.
	ErrMissingCode = errors.New("oauth: authorization code missing")
	// ErrTokenExchange wraps a failed code-for-token exchange.
	ErrTokenExchange = errors.New("oauth: token exchange failed")
	// ErrProfileFetch wraps a failed profile endpoint call.
	ErrProfileFetch = errors.New("oauth: profile fetch failed")
	// ErrEmailUnavailable is returned when the provider exposes no usable email.
	ErrEmailUnavailable = errors.New("oauth: no verified email available")
)

// Profile is the normalised identity extracted from a provider after a
// successful code exchange.
type Profile struct {
	Provider string
	ID       string
	Email    string
	Name     string
	Avatar   string
}

// Provider drives one three-legged OAuth code-exchange flow.
type Provider interface {
	// Name returns the provider tag (google, github).
	Name() string

	// AuthCodeURL builds the provider's authorization redirect target.
	// Pure: no side effects beyond returning the URL.
	AuthCodeURL(state string) string

	// FetchProfile exchanges the one-time code and resolves the profile.
	FetchProfile(ctx context.Context, code string) (*Profile, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider; registering the same name twice is an error.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("oauth registry: provider is required")
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))
	if name == "" {
		return errors.New("oauth registry: provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("oauth registry: provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
