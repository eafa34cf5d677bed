// Package endpoint resolves the backend base address for the relay host from
// the foreground context the user is looking at.
package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/quantumwallet/qwallet/internal/metrics"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Foreground identifies the context the user currently has open.
type Foreground struct {
	ID  string
	URL string
}

// ForegroundContext reports the current foreground context.
type ForegroundContext interface {
	Current(ctx context.Context) (Foreground, error)
}

// StaticForeground is a ForegroundContext that never changes.
type StaticForeground Foreground

// Current returns the static foreground.
func (s StaticForeground) Current(context.Context) (Foreground, error) {
	return Foreground(s), nil
}

// HealthChecker checks whether a resolved base answers.
type HealthChecker interface {
	CheckHealth(ctx context.Context, base string) error
}

// LogWriter is the logging surface used by the resolver.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures a Resolver.
type Options struct {
	HostedSuffix    string
	LocalDefault    string
	FallbackDefault string
	// HealthChecker is optional; without it the fallback default is never used.
	HealthChecker HealthChecker
	CacheSize     int
	Metrics       *metrics.Metrics
	Logger        LogWriter
}

// Resolver maps a foreground context to a backend base address.
type Resolver struct {
	foreground ForegroundContext
	opts       Options
	cache      *lru.Cache[string, string]
	group      singleflight.Group
}

// NewResolver creates a resolver over fg.
func NewResolver(fg ForegroundContext, opts Options) (*Resolver, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 32
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating endpoint cache: %w", err)
	}

	return &Resolver{foreground: fg, opts: opts, cache: cache}, nil
}

// Resolve returns the base address for the current foreground context.
// Lookups for the same context are cached; concurrent lookups share one health check.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	fg, err := r.foreground.Current(ctx)
	if err != nil {
		r.opts.Logger.Debug("foreground context unavailable, using %s: %v", r.opts.LocalDefault, err)
		return r.opts.LocalDefault, nil
	}

	key := fg.ID + "|" + fg.URL
	if base, ok := r.cache.Get(key); ok {
		r.opts.Metrics.RecordCacheHit()
		return base, nil
	}
	r.opts.Metrics.RecordCacheMiss()

	v, err, _ := r.group.Do(key, func() (any, error) {
		// A flight that finished between the miss and here already cached the answer
		if base, ok := r.cache.Get(key); ok {
			return base, nil
		}

		base := r.Classify(fg.URL)

		if r.opts.HealthChecker != nil {
			if perr := r.opts.HealthChecker.CheckHealth(ctx, base); perr != nil {
				if ctx.Err() != nil {
					return "", qwerr.WithCause(qwerr.ErrConnectivity, ctx.Err())
				}
				r.opts.Logger.Debug("health check for %s failed, falling back to %s: %v", base, r.opts.FallbackDefault, perr)
				base = r.opts.FallbackDefault
			}
		}

		r.cache.Add(key, base)
		return base, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil //nolint:forcetypeassert // singleflight only stores strings here
}

// Classify applies the hosted-suffix rule to a foreground URL without probing.
func (r *Resolver) Classify(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return r.opts.LocalDefault
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return r.opts.LocalDefault
	}

	host := strings.ToLower(u.Hostname())
	if r.opts.HostedSuffix != "" && strings.HasSuffix(host, r.opts.HostedSuffix) {
		return "https://" + host
	}

	return r.opts.LocalDefault
}

// Invalidate drops every cached resolution.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
}

// HTTPHealthChecker checks <base><path> with a GET and treats any 2xx as healthy.
type HTTPHealthChecker struct {
	client *http.Client
	path   string
}

// NewHTTPHealthChecker creates a checker with the given health path and timeout.
func NewHTTPHealthChecker(path string, timeout time.Duration) *HTTPHealthChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPHealthChecker{
		client: &http.Client{Timeout: timeout},
		path:   path,
	}
}

// CheckHealth performs the health request.
func (p *HTTPHealthChecker) CheckHealth(ctx context.Context, base string) error {
	target := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p.path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := p.client.Do(req) //nolint:gosec // target is built from the resolver's own rules
	if err != nil {
		return qwerr.WithCause(qwerr.ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return qwerr.WithDetails(qwerr.ErrConnectivity, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
