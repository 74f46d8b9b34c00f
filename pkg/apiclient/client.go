package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// User is the public account representation returned by the server.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Provider string `json:"provider"`
	Verified bool   `json:"verified"`
}

// RegisterResult reports the outcome of a registration attempt.
type RegisterResult struct {
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
	Email                string `json:"email"`
}

// RecommendParams filters a recommendation request.
type RecommendParams struct {
	Topic string
	Query string
	K     int
	Alpha float64
}

// SuggestionItem is one shortlisted resource sent for an explanation.
type SuggestionItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Desc   string `json:"desc,omitempty"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
}

// APIError is a structured failure returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: %s (%s, status %d)", e.Message, e.Code, e.Status)
}

// Options customise a Client.
type Option func(*clientOptions)

type clientOptions struct {
	store     TokenStore
	transport http.RoundTripper
	timeout   time.Duration
	onLogout  func()
}

// WithTokenStore swaps the default in-memory store, e.g. for a FileTokenStore.
func WithTokenStore(store TokenStore) Option {
	return func(o *clientOptions) { o.store = store }
}

// WithTransport replaces the underlying transport, primarily for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// WithTimeout bounds every request including the silent refresh.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithOnLogout registers a hook invoked when a silent refresh fails.
func WithOnLogout(fn func()) Option {
	return func(o *clientOptions) { o.onLogout = fn }
}

// Client is a typed SDK over the authentication and recommendation API. All
// requests travel through a SessionGuard, so an expired access token is
// refreshed silently and the original call replayed once.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	store   TokenStore
	guard   *SessionGuard
}

// NewClient builds a client rooted at baseURL, e.g. "http://localhost:5000".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q is not absolute", baseURL)
	}

	o := clientOptions{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = NewMemoryTokenStore()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	guard, err := NewSessionGuard(GuardConfig{
		Base:       o.transport,
		Store:      o.store,
		RefreshURL: parsed.String() + "/api/auth/refresh",
		Jar:        jar,
		Timeout:    o.timeout,
		OnLogout:   o.onLogout,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: parsed,
		http: &http.Client{
			Transport: guard,
			Jar:       jar,
			Timeout:   o.timeout,
		},
		store: o.store,
		guard: guard,
	}, nil
}

// AccessToken exposes the current access token, or "" when logged out.
func (c *Client) AccessToken() string {
	return c.store.AccessToken()
}

// Register creates a pending account and triggers the verification email.
func (c *Client) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	var result RegisterResult
	err := c.postJSON(ctx, "/api/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyEmail confirms the emailed code and activates the account.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) (*User, error) {
	var result struct {
		User User `json:"user"`
	}
	err := c.postJSON(ctx, "/api/auth/verify-email", map[string]string{
		"email": email,
		"code":  code,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Login authenticates with email and password. The access token is kept in
// the token store; the refresh token lands in the cookie jar.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var result struct {
		AccessToken string `json:"accessToken"`
		User        User   `json:"user"`
	}
	err := c.postJSON(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetAccessToken(result.AccessToken); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Refresh forces a silent refresh, replacing the stored access token.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.guard.refreshToken()
	return err
}

// Logout revokes the server-side session and clears local state.
func (c *Client) Logout(ctx context.Context) error {
	var result struct {
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "/api/auth/logout", nil, &result); err != nil {
		return err
	}
	return c.store.Clear()
}

// Me fetches the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var result struct {
		User User `json:"user"`
	}
	if err := c.getJSON(ctx, "/api/auth/me", &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Recommend fetches ranked learning resources for a topic. Items are returned
// raw because their shape is owned by the recommendation engine.
func (c *Client) Recommend(ctx context.Context, params RecommendParams) ([]json.RawMessage, error) {
	if strings.TrimSpace(params.Topic) == "" {
		return nil, errors.New("apiclient: topic is required")
	}

	query := url.Values{}
	query.Set("topic", params.Topic)
	if params.Query != "" {
		query.Set("q", params.Query)
	}
	if params.K > 0 {
		query.Set("k", strconv.Itoa(params.K))
	}
	if params.Alpha > 0 {
		query.Set("alpha", strconv.FormatFloat(params.Alpha, 'f', -1, 64))
	}

	var result struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/recommend?"+query.Encode(), &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Suggest asks the language-model service to explain a shortlist of resources.
func (c *Client) Suggest(ctx context.Context, items []SuggestionItem) ([]json.RawMessage, error) {
	var result struct {
		Suggestions []json.RawMessage `json:"suggestions"`
	}
	err := c.postJSON(ctx, "/api/llm/suggest", map[string]any{"items": items}, &result)
	if err != nil {
		return nil, err
	}
	return result.Suggestions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dest)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBufferedBody)).Decode(&envelope); err != nil {
		return fmt.Errorf("apiclient: decode response (status %d): %w", resp.StatusCode, err)
	}

	if !envelope.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: "request failed"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if dest != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			return fmt.Errorf("apiclient: decode payload: %w", err)
		}
	}
	return nil
}
