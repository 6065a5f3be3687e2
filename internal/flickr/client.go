package flickr

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"uploadr/internal/logging"
	"uploadr/internal/services"
)

const (
	defaultRetryAttempts = 4
	defaultRetryInitial  = 500 * time.Millisecond
	maxErrorBody         = 4096
)

// Config captures endpoint and credential settings.
type Config struct {
	APIKey    string
	Secret    string
	RestURL   string
	UploadURL string
	AuthURL   string
	Perms     string
	// Timeout bounds a single HTTP exchange. Zero leaves the transport default.
	Timeout time.Duration
}

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to Flickr on behalf of one authenticated user.
type Client struct {
	cfg          Config
	http         HTTPDoer
	token        string
	logger       *slog.Logger
	retryTries   uint
	retryInitial time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithToken sets the auth token used for authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "flickr")
	}
}

// WithRetry overrides the retry budget for read-only calls.
func WithRetry(attempts uint, initial time.Duration) Option {
	return func(c *Client) {
		c.retryTries = attempts
		c.retryInitial = initial
	}
}

// New constructs a client. APIKey and Secret are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	if cfg.APIKey == "" || cfg.Secret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "flickr", "new client", "api key and secret are required", nil)
	}
	if cfg.Perms == "" {
		cfg.Perms = "delete"
	}
	c := &Client{
		cfg:          cfg,
		http:         &http.Client{Timeout: cfg.Timeout},
		logger:       logging.NewComponentLogger(nil, "flickr"),
		retryTries:   defaultRetryAttempts,
		retryInitial: defaultRetryInitial,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryTries == 0 {
		c.retryTries = 1
	}
	return c, nil
}

// Token returns the auth token in use.
func (c *Client) Token() string { return c.token }

// SetToken replaces the auth token, typically after the auth handshake.
func (c *Client) SetToken(token string) { c.token = strings.TrimSpace(token) }

// Sign computes api_sig for params. api_sig itself is never part of the input.
func (c *Client) Sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "api_sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(c.cfg.Secret)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// signed returns a copy of params with api_key, auth_token and api_sig filled in.
func (c *Client) signed(params url.Values, withToken bool) url.Values {
	out := url.Values{}
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	out.Set("api_key", c.cfg.APIKey)
	if withToken && c.token != "" {
		out.Set("auth_token", c.token)
	}
	out.Set("api_sig", c.Sign(out))
	return out
}

// APIError is a stat="fail" response.
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flickr %s: error %d: %s", e.Method, e.Code, e.Message)
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type envelope struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call invokes a REST method and decodes the JSON response into out. Reads use
// GET, mutations POST.
func (c *Client) Call(ctx context.Context, httpMethod, method string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params = cloneValues(params)
	params.Set("method", method)
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")
	signed := c.signed(params, true)

	var (
		req *http.Request
		err error
	)
	switch httpMethod {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RestURL, strings.NewReader(signed.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RestURL+"?"+signed.Encode(), nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("flickr %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode >= 400 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if env.Stat != "ok" {
		return &APIError{Method: method, Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// callWithRetry runs a read-only call under exponential backoff. API errors and
// 4xx responses are permanent.
func (c *Client) callWithRetry(ctx context.Context, method string, params url.Values, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.Call(ctx, http.MethodGet, method, params, out)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		c.logger.Debug("retrying flickr call",
			logging.String("method", method),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.retryTries))
	return err
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Flickr error codes for an unusable token.
const (
	errInvalidToken      = 98
	errInsufficientPerms = 99
)

func tokenRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Code == errInvalidToken || apiErr.Code == errInsufficientPerms)
}

func transferFailed(operation string, err error) error {
	return services.Wrap(services.ErrTransferFailed, "flickr", operation, "request failed", err)
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// content unwraps Flickr's {"_content": "..."} string wrapper.
type content struct {
	Content string `json:"_content"`
}

// flexInt accepts numbers encoded either as JSON numbers or strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(n)
	return nil
}
