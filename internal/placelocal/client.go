package placelocal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for API requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; tagcompare/1.0)"

// DefaultAnimationTime is the number of seconds after which animated tags
// render their final frame.
const DefaultAnimationTime = 1

// APIKeyHeader carries the API key when one is configured.
const APIKeyHeader = "X-Api-Key"

// Options configures the client.
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	APIKey        string
	AnimationTime int
	// Scheme of the API URLs, "https" unless set.
	Scheme string
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults for the API client.
func DefaultOptions() *Options {
	return &Options{
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		AnimationTime: DefaultAnimationTime,
		Scheme:        "https",
	}
}

// Client requests the PlaceLocal API of one domain.
type Client struct {
	domain string
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the API served at domain.
func NewClient(domain string, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	defaults := DefaultOptions()
	if o.Timeout == 0 {
		o.Timeout = defaults.Timeout
	}
	if o.UserAgent == "" {
		o.UserAgent = defaults.UserAgent
	}
	if o.AnimationTime == 0 {
		o.AnimationTime = defaults.AnimationTime
	}
	if o.Scheme == "" {
		o.Scheme = defaults.Scheme
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		domain: strings.TrimSuffix(domain, "/"),
		opts:   o,
		http:   &http.Client{Timeout: o.Timeout},
		logger: logger.With("component", "placelocal"),
	}
}

// Domain returns the API domain.
func (c *Client) Domain() string { return c.domain }

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// get requests route and decodes the "data" member of the response into out.
// It reports whether data was present and non-empty.
func (c *Client) get(ctx context.Context, route string, query url.Values, out interface{}) (bool, error) {
	u := url.URL{Scheme: c.opts.Scheme, Host: c.domain, Path: "/" + strings.TrimPrefix(route, "/")}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	urlStr := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return false, &APIError{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &APIError{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &APIError{URL: urlStr, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return false, &APIError{URL: urlStr, StatusCode: resp.StatusCode, Message: "GET failed: " + strings.TrimSpace(string(body))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, &APIError{URL: urlStr, StatusCode: resp.StatusCode, Message: "invalid response JSON", Cause: err}
	}
	if env.Data == nil {
		return false, &APIError{URL: urlStr, StatusCode: resp.StatusCode, Message: "invalid response - no data"}
	}
	switch strings.TrimSpace(string(env.Data)) {
	case "null", "{}", "[]", `""`, "false":
		return false, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, &APIError{URL: urlStr, StatusCode: resp.StatusCode, Message: "unexpected data", Cause: err}
	}
	return true, nil
}
