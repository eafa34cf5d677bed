package endpoint_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumwallet/qwallet/internal/endpoint"
	"github.com/quantumwallet/qwallet/internal/metrics"
)

var (
	errNoTab    = errors.New("no active tab")
	errUnhealthy = errors.New("connection refused")
)

const (
	localDefault    = "http://localhost:5000"
	fallbackDefault = "http://0.0.0.0:5000"
)

type switchableForeground struct {
	mu  sync.Mutex
	fg  endpoint.Foreground
	err error
}

func (s *switchableForeground) Current(context.Context) (endpoint.Foreground, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fg, s.err
}

func (s *switchableForeground) set(fg endpoint.Foreground) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fg = fg
}

type countingChecker struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (p *countingChecker) CheckHealth(context.Context, string) error {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.err
}

func newResolver(t *testing.T, fg endpoint.ForegroundContext, checker endpoint.HealthChecker, m *metrics.Metrics) *endpoint.Resolver {
	t.Helper()
	r, err := endpoint.NewResolver(fg, endpoint.Options{
		HostedSuffix:    ".repl.co",
		LocalDefault:    localDefault,
		FallbackDefault: fallbackDefault,
		HealthChecker:   checker,
		Metrics:         m,
	})
	require.NoError(t, err)
	return r
}

func TestResolve_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fg       endpoint.Foreground
		expected string
	}{
		{"hosted origin", endpoint.Foreground{ID: "1", URL: "https://my-wallet.alice.repl.co/dashboard"}, "https://my-wallet.alice.repl.co"},
		{"hosted origin with port", endpoint.Foreground{ID: "1", URL: "http://x.repl.co:8080/"}, "https://x.repl.co"},
		{"other origin", endpoint.Foreground{ID: "2", URL: "https://example.com"}, localDefault},
		{"empty url", endpoint.Foreground{ID: "3"}, localDefault},
		{"garbage url", endpoint.Foreground{ID: "4", URL: "::::"}, localDefault},
		{"suffix only in path", endpoint.Foreground{ID: "5", URL: "https://evil.com/.repl.co"}, localDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newResolver(t, endpoint.StaticForeground(tt.fg), nil, nil)
			base, err := r.Resolve(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, base)
		})
	}
}

func TestResolve_ForegroundErrorUsesLocalDefault(t *testing.T) {
	t.Parallel()

	r := newResolver(t, &switchableForeground{err: errNoTab}, nil, nil)
	base, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, localDefault, base)
}

func TestResolve_UnhealthyFallsBack(t *testing.T) {
	t.Parallel()

	checker := &countingChecker{err: errUnhealthy}
	r := newResolver(t, endpoint.StaticForeground{ID: "1", URL: "https://a.repl.co"}, checker, nil)

	base, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackDefault, base)
}

func TestResolve_CachedPerContext(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	checker := &countingChecker{}
	fg := &switchableForeground{fg: endpoint.Foreground{ID: "tab-1", URL: "https://a.repl.co"}}
	r := newResolver(t, fg, checker, m)

	for i := 0; i < 3; i++ {
		base, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://a.repl.co", base)
	}
	assert.Equal(t, int32(1), checker.calls.Load())

	// A changed context resolves afresh
	fg.set(endpoint.Foreground{ID: "tab-2", URL: "http://localhost:3000"})
	base, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, localDefault, base)
	assert.Equal(t, int32(2), checker.calls.Load())

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.CacheHits)
	assert.Equal(t, int64(2), snap.CacheMisses)

	r.Invalidate()
	_, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), checker.calls.Load())
}

func TestResolve_ConcurrentLookupsShareHealthCheck(t *testing.T) {
	t.Parallel()

	checker := &countingChecker{delay: 50 * time.Millisecond}
	r := newResolver(t, endpoint.StaticForeground{ID: "1", URL: "https://a.repl.co"}, checker, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			base, err := r.Resolve(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "https://a.repl.co", base)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestHTTPHealthChecker(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	p := endpoint.NewHTTPHealthChecker("/api/health", time.Second)
	require.NoError(t, p.CheckHealth(context.Background(), healthy.URL))
	require.Error(t, p.CheckHealth(context.Background(), broken.URL))
	require.Error(t, p.CheckHealth(context.Background(), "http://127.0.0.1:1"))
}
