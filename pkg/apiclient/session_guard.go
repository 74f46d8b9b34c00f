package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired signals that a silent refresh failed and the client is
// logged out.
var ErrSessionExpired = errors.New("apiclient: session expired")

const (
	defaultRefreshTimeout = 15 * time.Second
	maxBufferedBody       = 64 << 10
)

// GuardConfig configures a SessionGuard.
type GuardConfig struct {
	// Base is the transport requests are sent over. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper

	// Store holds the access token attached to outgoing requests.
	Store TokenStore

	// RefreshURL is the absolute URL of the refresh endpoint.
	RefreshURL string

	// Jar carries the refresh cookie for the silent refresh call. It should
	// be the same jar the surrounding http.Client uses.
	Jar http.CookieJar

	// Timeout bounds a single refresh round-trip. Queued requests waiting on
	// the refresh observe its failure when it expires.
	Timeout time.Duration

	// OnLogout runs once whenever a refresh fails and the guard transitions
	// to the logged-out state.
	OnLogout func()
}

// SessionGuard is an http.RoundTripper that attaches the stored access token
// as a bearer credential and transparently recovers from expired-token
// rejections: the first 401 triggers a single refresh call, concurrent
// requests wait behind it, and every waiter replays once with the new token.
// The refresh call itself is exempt, so the guard cannot loop.
type SessionGuard struct {
	base      http.RoundTripper
	store     TokenStore
	refresh   *url.URL
	refresher *http.Client
	timeout   time.Duration
	onLogout  func()

	group singleflight.Group
}

// NewSessionGuard validates cfg and returns a ready transport.
func NewSessionGuard(cfg GuardConfig) (*SessionGuard, error) {
	if cfg.Store == nil {
		return nil, errors.New("apiclient: token store is required")
	}
	refreshURL, err := url.Parse(strings.TrimSpace(cfg.RefreshURL))
	if err != nil || refreshURL.Scheme == "" || refreshURL.Host == "" {
		return nil, fmt.Errorf("apiclient: refresh url %q is not absolute", cfg.RefreshURL)
	}

	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}

	return &SessionGuard{
		base:    base,
		store:   cfg.Store,
		refresh: refreshURL,
		refresher: &http.Client{
			Transport: base,
			Jar:       cfg.Jar,
			Timeout:   timeout,
		},
		timeout:  timeout,
		onLogout: cfg.OnLogout,
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (g *SessionGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	if g.isRefreshRequest(req) {
		return g.base.RoundTrip(req)
	}

	out := req
	if token := g.store.AccessToken(); token != "" {
		out = req.Clone(req.Context())
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if req.Body != nil && req.GetBody == nil {
		// The body cannot be replayed, so surface the rejection.
		return resp, nil
	}

	// Keep the rejection payload around in case the refresh fails.
	resp = bufferBody(resp)

	token, refreshErr := g.refreshToken()
	if refreshErr != nil {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	retryResp, err := g.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	return retryResp, nil
}

// refreshToken collapses concurrent refresh attempts into a single network
// call. Every caller blocked on the same flight receives the same token or
// the same failure.
func (g *SessionGuard) refreshToken() (string, error) {
	v, err, _ := g.group.Do("refresh", func() (any, error) {
		token, err := g.doRefresh()
		if err != nil {
			_ = g.store.Clear()
			if g.onLogout != nil {
				g.onLogout()
			}
			return nil, err
		}
		if err := g.store.SetAccessToken(token); err != nil {
			return nil, err
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *SessionGuard) doRefresh() (string, error) {
	// The refresh outcome is shared across waiters, so it runs on its own
	// deadline instead of any single caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.refresh.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := g.refresher.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBufferedBody)).Decode(&envelope); err != nil {
		return "", fmt.Errorf("%w: decode refresh response: %v", ErrSessionExpired, err)
	}

	if resp.StatusCode != http.StatusOK || !envelope.Success || envelope.Data.AccessToken == "" {
		if envelope.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrSessionExpired, envelope.Error.Message)
		}
		return "", fmt.Errorf("%w: refresh returned status %d", ErrSessionExpired, resp.StatusCode)
	}

	return envelope.Data.AccessToken, nil
}

func (g *SessionGuard) isRefreshRequest(req *http.Request) bool {
	u := req.URL
	return u.Scheme == g.refresh.Scheme && u.Host == g.refresh.Host && u.Path == g.refresh.Path
}

func bufferBody(resp *http.Response) *http.Response {
	if resp.Body == nil {
		return resp
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody))
	_ = resp.Body.Close()
	if err != nil {
		data = nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp
}
