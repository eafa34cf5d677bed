package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/quantumwallet/qwallet/internal/version"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

const (
	// DefaultTimeout bounds every direct request.
	DefaultTimeout = 30 * time.Second

	// maxResponseBody is the maximum response body size to read (1 MB).
	maxResponseBody = 1 << 20

	// RequestIDHeader carries a fresh id per request so backend logs can be correlated.
	RequestIDHeader = "X-Request-ID"
)

// DirectOptions configures a DirectChannel.
type DirectOptions struct {
	// BaseURL is the backend origin, e.g. http://localhost:5000.
	BaseURL string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the default client. Its Jar is replaced unless set.
	HTTPClient *http.Client
	// RateLimiter overrides the default per-host limiter.
	RateLimiter *RateLimiter
	// UserAgent overrides the default qwallet/<version> agent.
	UserAgent string
}

// DirectChannel talks to the backend over HTTP with a cookie session.
type DirectChannel struct {
	baseURL     string
	timeout     time.Duration
	userAgent   string
	httpClient  *http.Client
	jar         http.CookieJar
	rateLimiter *RateLimiter
}

var (
	_ Channel    = (*DirectChannel)(nil)
	_ LoginPager = (*DirectChannel)(nil)
)

// NewDirectChannel creates a direct HTTP channel.
func NewDirectChannel(opts DirectOptions) (*DirectChannel, error) {
	if opts.BaseURL == "" {
		return nil, qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"base_url": "empty"})
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"base_url": opts.BaseURL})
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &DirectChannel{
		baseURL:     opts.BaseURL,
		timeout:     DefaultTimeout,
		userAgent:   version.UserAgent(),
		rateLimiter: NewRateLimiter(10, 5),
	}

	if opts.Timeout > 0 {
		c.timeout = opts.Timeout
	}
	if opts.UserAgent != "" {
		c.userAgent = opts.UserAgent
	}
	if opts.RateLimiter != nil {
		c.rateLimiter = opts.RateLimiter
	}

	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	} else {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	c.jar = c.httpClient.Jar

	return c, nil
}

// Kind returns KindDirect.
func (c *DirectChannel) Kind() Kind {
	return KindDirect
}

// BaseURL returns the configured backend origin.
func (c *DirectChannel) BaseURL() string {
	return c.baseURL
}

// LoginPage returns the backend login page URL.
func (c *DirectChannel) LoginPage(_ context.Context) (string, error) {
	return joinURL(c.baseURL, "/login"), nil
}

// Send performs the HTTP call. The response body is read up to 1 MB.
func (c *DirectChannel) Send(ctx context.Context, req *Request) (*Response, error) {
	base := c.baseURL
	if req.Base != "" {
		base = req.Base
	}
	target := joinURL(base, req.Path)

	u, err := url.Parse(target)
	if err != nil {
		return nil, qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"url": target})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rateLimiter.Wait(ctx, u.Host); err != nil {
		return nil, qwerr.WithCause(qwerr.ErrRateLimited, err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // URL is built from the configured or resolved backend origin
	if err != nil {
		return nil, connectivityError(err, u.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, connectivityError(err, u.Host)
	}

	if !isSuccess(resp.StatusCode) {
		return nil, &StatusError{HTTPStatus: resp.StatusCode, Body: data}
	}

	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// Cookies returns the session cookies held for base.
func (c *DirectChannel) Cookies(base string) []*http.Cookie {
	u, err := url.Parse(base)
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// SetCookies seeds the jar, e.g. from a persisted session.
func (c *DirectChannel) SetCookies(base string, cookies []*http.Cookie) {
	u, err := url.Parse(base)
	if err != nil || len(cookies) == 0 {
		return
	}
	c.jar.SetCookies(u, cookies)
}

// connectivityError maps a failed round trip onto the connectivity kind.
func connectivityError(err error, host string) error {
	details := map[string]string{"host": host}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return qwerr.WithDetails(qwerr.WithCause(qwerr.ErrTimeout, err), details)
	}
	return qwerr.WithDetails(qwerr.WithCause(qwerr.ErrConnectivity, err), details)
}

// truncateBody truncates a string to maxLen characters.
func truncateBody(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
