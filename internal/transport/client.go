// Package transport issues HTTP requests for source adapters with the
// resilience primitives they all need: timeouts, default headers, a
// per-client cookie jar (some career sites hand out session tokens),
// per-host rate limiting, and retry with exponential backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "internwatch/1.0 (+https://example.com/internwatch)"
)

// StatusError reports a non-2xx response. Codes >= 500 are retryable.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.URL)
}

// Client wraps http.Client with the defaults adapters rely on. Each
// adapter instance owns its own Client; nothing is shared across
// unrelated instances, so a session cookie captured for one source
// never leaks into another.
type Client struct {
	hc      *http.Client
	headers map[string]string
	limiter *HostLimiter
	logger  *zap.Logger
}

type Option func(*Client)

// WithHeaders merges extra default headers (Referer, Origin, ...) into
// every request the client makes.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithRateLimit paces requests per hostname.
func WithRateLimit(reqPerSec float64, burst int) Option {
	return func(c *Client) { c.limiter = NewHostLimiter(reqPerSec, burst) }
}

func NewClient(logger *zap.Logger, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		hc: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent":      defaultUserAgent,
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues the request with default headers applied and returns the
// response. Non-2xx statuses are reported as *StatusError with the body
// drained and closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if c.limiter != nil {
		if err := c.limiter.WaitURL(req.Context(), req.URL.String()); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("http request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
		return nil, &StatusError{Code: res.StatusCode, URL: req.URL.String()}
	}
	return res, nil
}

// GetJSON fetches url (plus query params) and decodes the JSON body
// into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// PostJSON sends payload as a JSON body and decodes the JSON response
// into out. Extra headers override the client defaults for this call
// only (anti-forgery tokens travel this way).
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any, extra map[string]string, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Reachable probes url with a short GET, for adapter health checks.
// Any network error or non-2xx counts as unreachable.
func (c *Client) Reachable(ctx context.Context, rawURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	res, err := c.Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	return true
}
