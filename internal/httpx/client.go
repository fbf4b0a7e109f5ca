package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls the retry behaviour for transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// DefaultRetryPolicy implements a conservative retry strategy.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used by the helper.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithRetryPolicy overrides the default retry configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithLogger sets the logger used to report retried requests.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps http.Client with a base URL and retries.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	headers     http.Header
	retryPolicy RetryPolicy
	logger      *zap.Logger
}

// Request describes a single outbound request. Body is replayed verbatim on
// every attempt.
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Header       http.Header
	Body         []byte
	DisableRetry bool
}

// NewClient creates a Client for the provided base URL. A bare host:port is
// treated as http://host:port.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("httpx: base URL is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("httpx: base URL %q has no host", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers:     make(http.Header),
		retryPolicy: DefaultRetryPolicy,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retryPolicy.MaxRetries < 0 {
		c.retryPolicy.MaxRetries = 0
	}
	if c.retryPolicy.BaseDelay <= 0 {
		c.retryPolicy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if c.retryPolicy.MaxDelay <= 0 {
		c.retryPolicy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return c, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do executes req and returns the response body of a 2xx reply. Non-2xx
// replies are returned as *HTTPError once retries are exhausted.
func (c *Client) Do(ctx context.Context, req *Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fullURL, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	backoff := NewBackoff(c.retryPolicy.BaseDelay, c.retryPolicy.MaxDelay, c.retryPolicy.Jitter)
	for attempt := 0; ; attempt++ {
		body, err := c.once(ctx, req, fullURL)
		if err == nil {
			return body, nil
		}
		if !c.shouldRetry(req, attempt, err) {
			return nil, err
		}

		delay := backoff.ForAttempt(attempt)
		c.logger.Debug("retrying request",
			zap.String("method", req.Method),
			zap.String("url", fullURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) once(ctx context.Context, req *Request, fullURL string) ([]byte, error) {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = c.headers.Clone()
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpx: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       data,
			Header:     resp.Header.Clone(),
		}
	}
	return data, nil
}

func (c *Client) shouldRetry(req *Request, attempt int, err error) bool {
	if req.DisableRetry || attempt >= c.retryPolicy.MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}

func (c *Client) buildURL(path string, q url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("httpx: invalid path %q: %w", path, err)
	}
	if len(q) > 0 {
		ref.RawQuery = q.Encode()
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
