// Package client is the remote caller of the linkshelf HTTP API: the list
// loader, the mutation gateway and the change feed subscription used by the
// CLI.
package client

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

	"golang.org/x/net/publicsuffix"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/bookmarks"
	"github.com/starford/linkshelf/internal/models"
)

// DefaultCookieName matches the server's default session cookie.
const DefaultCookieName = "linkshelf_session"

// Client talks to one linkshelf server.
type Client struct {
	base       *url.URL
	token      string
	cookieName string
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCookieName overrides the session cookie read by Exchange.
func WithCookieName(name string) Option {
	return func(c *Client) { c.cookieName = name }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base url %q needs scheme and host", baseURL)
	}
	c := &Client{
		base:       u,
		cookieName: DefaultCookieName,
		http:       &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

type meResponse struct {
	User    models.User `json:"user"`
	Session struct {
		ID        string    `json:"id"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"session"`
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// CurrentSession reports the caller's session. Without a token, or when the
// server rejects it, it returns apperr.ErrUnauthenticated.
func (c *Client) CurrentSession(ctx context.Context) (*models.Session, error) {
	if c.token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &models.Session{ID: out.Session.ID, UserID: out.User.ID, ExpiresAt: out.Session.ExpiresAt}, nil
}

type listResponse struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
}

// List fetches the caller's bookmarks newest first. An empty category lists all.
func (c *Client) List(ctx context.Context, category string) ([]models.Bookmark, error) {
	path := "/api/bookmarks"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Bookmarks, nil
}

// Categories fetches the caller's distinct categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// Create submits a new bookmark. Input is normalized before it is sent; the
// local view learns about the record from the change feed.
func (c *Client) Create(ctx context.Context, in bookmarks.Input) (*models.Bookmark, error) {
	body, err := prepare(in)
	if err != nil {
		return nil, err
	}
	var out models.Bookmark
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update rewrites bookmark id.
func (c *Client) Update(ctx context.Context, id int64, in bookmarks.Input) (*models.Bookmark, error) {
	body, err := prepare(in)
	if err != nil {
		return nil, err
	}
	var out models.Bookmark
	if err := c.do(ctx, http.MethodPut, "/api/bookmarks/"+strconv.FormatInt(id, 10), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes bookmark id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+strconv.FormatInt(id, 10), nil, nil)
}

func prepare(in bookmarks.Input) (bookmarks.Input, error) {
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return bookmarks.Input{
		Title:    strings.TrimSpace(in.Title),
		URL:      bookmarks.NormalizeURL(strings.TrimSpace(in.URL)),
		Category: bookmarks.NormalizeCategory(in.Category),
	}, nil
}

// LoginRequest is the server's answer to a login code request. Link is only
// populated when the server runs in development mode.
type LoginRequest struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Link      string    `json:"link,omitempty"`
}

// RequestCode asks the server to issue a login code for email.
func (c *Client) RequestCode(ctx context.Context, email string) (*LoginRequest, error) {
	var out LoginRequest
	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CodeFromLink extracts the code query parameter from a callback link.
func CodeFromLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("client: parse link: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("client: link has no code: %w", apperr.ErrInvalidCode)
	}
	return code, nil
}

// Exchange trades a login code for a session token and keeps it for later calls.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return "", fmt.Errorf("client: cookie jar: %w", err)
	}
	hc := *c.http
	hc.Jar = jar
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	u := c.resolve("/auth/callback?code=" + url.QueryEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("client: build request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("client: exchange: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if strings.Contains(resp.Header.Get("Location"), "auth-code-error") {
		return "", fmt.Errorf("client: exchange: %w", apperr.ErrInvalidCode)
	}
	// The jar withholds Secure cookies from plain http URLs, so fall back to the raw response.
	for _, ck := range append(jar.Cookies(u), resp.Cookies()...) {
		if ck.Name == c.cookieName && ck.Value != "" {
			c.token = ck.Value
			return ck.Value, nil
		}
	}
	return "", fmt.Errorf("client: exchange: no session cookie (status %d): %w", resp.StatusCode, apperr.ErrUnauthenticated)
}

// SignOut revokes the current session on the server and forgets the token.
func (c *Client) SignOut(ctx context.Context) error {
	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/signout", nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("client: sign out: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("client: sign out: status %d", resp.StatusCode)
	}
	c.token = ""
	return nil
}

func (c *Client) resolve(path string) *url.URL {
	ref, _ := url.Parse(path)
	return c.base.ResolveReference(ref)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path).String(), r)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// statusError maps an error response onto the apperr sentinels.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = apperr.ErrInvalidInput
	case http.StatusUnauthorized:
		sentinel = apperr.ErrUnauthenticated
	case http.StatusNotFound:
		sentinel = apperr.ErrNotFound
	case http.StatusConflict:
		sentinel = apperr.ErrConflict
	default:
		return fmt.Errorf("client: server returned %d: %s", resp.StatusCode, body.Error)
	}
	return &StatusError{Code: resp.StatusCode, Message: body.Error, err: sentinel}
}

// StatusError is a rejected request. It unwraps to the matching apperr sentinel.
type StatusError struct {
	Code    int
	Message string
	err     error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.err }

// IsUnauthenticated reports whether err means the session is missing or revoked.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, apperr.ErrUnauthenticated)
}
