// Package geotab talks to a MyGeotab server over its JSON-RPC endpoint and
// exposes it as the form's host.
//
// Example usage:
//
//	client, err := geotab.New(geotab.Config{Server: "my.geotab.com", Database: "fleet", UserName: "driver@example.com", Password: pw})
//	host := geotab.NewHost(client, "device.id")
package geotab

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
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds each HTTP round trip.
	DefaultTimeout = 30 * time.Second

	apiPath          = "/apiv1"
	methodAuth       = "Authenticate"
	thisServer       = "ThisServer"
	maxResponseBytes = 8 << 20
	maxErrorBody     = 512
)

// Logger receives client diagnostics.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config identifies the server and account to sign in with.
type Config struct {
	Server   string
	Database string
	UserName string
	Password string
	Timeout  time.Duration
}

// Credentials is the session returned by Authenticate and attached to every
// later call.
type Credentials struct {
	Database  string `json:"database"`
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
}

type authResult struct {
	Credentials Credentials `json:"credentials"`
	Path        string      `json:"path"`
}

type request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestIDs overrides request id generation.
func WithRequestIDs(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.newID = next
		}
	}
}

// Client is a MyGeotab JSON-RPC client. It signs in lazily and reuses the
// session until the server rejects it.
type Client struct {
	cfg    Config
	http   *http.Client
	logger Logger
	newID  func() string

	mu       sync.Mutex
	endpoint string
	creds    *Credentials
	onAuth   []func()
}

// New validates cfg and prepares a client. No request is made.
func New(cfg Config, opts ...Option) (*Client, error) {
	endpoint, err := endpointFor(cfg.Server, "https")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("geotab: database is required")
	}
	if strings.TrimSpace(cfg.UserName) == "" {
		return nil, fmt.Errorf("geotab: user name is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: timeout},
		logger:   nopLogger{},
		newID:    func() string { return uuid.NewString() },
		endpoint: endpoint,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func endpointFor(server, defaultScheme string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", fmt.Errorf("geotab: server is required")
	}
	if !strings.Contains(server, "://") {
		server = defaultScheme + "://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("geotab: invalid server %q", server)
	}
	u.Path = apiPath
	u.RawQuery = ""
	return u.String(), nil
}

// Endpoint returns the URL calls are currently posted to.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// OnAuthenticated registers fn to run after every successful sign-in.
func (c *Client) OnAuthenticated(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuth = append(c.onAuth, fn)
}

// Authenticate signs in and caches the session. When the server answers
// with a different path, later calls go to that server.
func (c *Client) Authenticate(ctx context.Context) (Credentials, error) {
	params := map[string]any{
		"database": c.cfg.Database,
		"userName": c.cfg.UserName,
		"password": c.cfg.Password,
	}
	var res authResult
	if err := c.post(ctx, c.Endpoint(), methodAuth, params, &res); err != nil {
		return Credentials{}, fmt.Errorf("geotab: authenticate: %w", err)
	}
	if res.Credentials.SessionID == "" {
		return Credentials{}, fmt.Errorf("geotab: authenticate: empty session")
	}

	c.mu.Lock()
	if res.Path != "" && !strings.EqualFold(res.Path, thisServer) {
		scheme := "https"
		if u, err := url.Parse(c.endpoint); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		if next, err := endpointFor(res.Path, scheme); err == nil {
			c.endpoint = next
		}
	}
	creds := res.Credentials
	c.creds = &creds
	hooks := append([]func(){}, c.onAuth...)
	c.mu.Unlock()

	c.logger.Info("signed in to %s as %s", creds.Database, creds.UserName)
	for _, fn := range hooks {
		fn()
	}
	return creds, nil
}

func (c *Client) session(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	creds := c.creds
	c.mu.Unlock()
	if creds != nil {
		return *creds, nil
	}
	return c.Authenticate(ctx)
}

func (c *Client) dropSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = nil
}

// Call invokes method with params (any JSON object) and decodes the result
// into result. A rejected session is refreshed once.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	body, err := paramsObject(params)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		creds, err := c.session(ctx)
		if err != nil {
			return err
		}
		body["credentials"] = creds
		err = c.post(ctx, c.Endpoint(), method, body, result)
		if err == nil {
			return nil
		}
		if attempt == 0 && IsInvalidUser(err) {
			c.logger.Warn("session rejected during %s; signing in again", method)
			c.dropSession()
			continue
		}
		return fmt.Errorf("geotab: %s: %w", method, err)
	}
}

func paramsObject(params any) (map[string]any, error) {
	out := map[string]any{}
	if params == nil {
		return out, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("geotab: encode params: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("geotab: params must be a JSON object: %w", err)
	}
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint, method string, params map[string]any, result any) error {
	payload, err := json.Marshal(request{ID: c.newID(), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errorBody(raw))
	}
	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// errorBody flattens a non-2xx body onto one line and caps it at
// maxErrorBody bytes so proxy error pages stay readable in the log.
func errorBody(raw []byte) string {
	body := strings.Join(strings.Fields(string(raw)), " ")
	if len(body) <= maxErrorBody {
		return body
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "... (truncated)"
}

// ErrorDetail is one inner error reported by the server.
type ErrorDetail struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Error is a JSON-RPC error returned by the server.
type Error struct {
	Name    string        `json:"name"`
	Message string        `json:"message"`
	Errors  []ErrorDetail `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	name := e.Name
	if len(e.Errors) > 0 && e.Errors[0].Name != "" {
		name = e.Errors[0].Name
	}
	if name == "" {
		return e.Message
	}
	return name + ": " + e.Message
}

// has reports whether e or one of its details carries name.
func (e *Error) has(name string) bool {
	if e.Name == name {
		return true
	}
	for _, d := range e.Errors {
		if d.Name == name {
			return true
		}
	}
	return false
}

// IsInvalidUser reports whether err is a rejected or expired session.
func IsInvalidUser(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.has("InvalidUserException")
}
