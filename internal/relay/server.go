package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantumwallet/qwallet/internal/metrics"
	"github.com/quantumwallet/qwallet/internal/transport"
)

// RelayPath is where the websocket endpoint is mounted.
const RelayPath = "/relay"

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	maxMessageSize  = 1 << 20
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr string
	// AllowedOrigins lists browser origins that may connect. Empty allows all.
	// Entries may end in ":*" to accept any port.
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// Server exposes a Handler over a websocket.
type Server struct {
	handler  Handler
	opts     ServerOptions
	upgrader websocket.Upgrader
	router   chi.Router

	mu  sync.Mutex
	srv *http.Server
}

// NewServer creates a relay server for h.
func NewServer(h Handler, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{handler: h, opts: opts}
	allowed := AllowedOrigin(opts.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no origin
			return origin == "" || allowed(origin)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(RelayPath, s.serveRelay)
	r.Get("/healthz", s.serveHealth)
	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return cors.New(CORSOptions(s.opts.AllowedOrigins)).Handler(s.router)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.opts.Logger),
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.opts.Logger.Info("relay host listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.opts.Logger.Info("stopping relay host")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.opts.Logger.Error("relay host did not stop cleanly", zap.Error(err))
			return err
		}
		return nil
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// serveRelay reads envelopes until the connection drops. Each envelope is
// handled on its own goroutine and replies are written one at a time.
func (s *Server) serveRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	log := s.opts.Logger.With(zap.String("remote", r.RemoteAddr))
	log.Debug("relay client connected")

	// Hijacked connections outlive the request context
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	defer func() {
		cancel()
		wg.Wait()
		_ = conn.Close()
		log.Debug("relay client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("relay read ended", zap.Error(err))
			}
			return
		}

		var msg transport.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.ID == "" {
			log.Warn("dropping malformed relay message", zap.Int("bytes", len(data)))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := s.handler.Handle(ctx, &msg)

			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(reply); err != nil {
				log.Debug("relay reply not delivered", zap.String("id", msg.ID), zap.Error(err))
			}
		}()
	}
}

// CORSOptions returns the CORS policy for the relay host.
func CORSOptions(allowedOrigins []string) cors.Options {
	return cors.Options{
		AllowOriginFunc:  AllowedOrigin(allowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}
}

// AllowedOrigin matches origins against the allow list, ignoring the scheme.
// A trailing ":*" accepts any port on that host.
func AllowedOrigin(allowedOrigins []string) func(origin string) bool {
	trimScheme := func(origin string) string {
		return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	}
	return func(origin string) bool {
		if len(allowedOrigins) == 0 || allowedOrigins[0] == "*" {
			return true
		}
		o := trimScheme(origin)
		for _, allowed := range allowedOrigins {
			a := trimScheme(allowed)
			if a == o {
				return true
			}
			if host, ok := strings.CutSuffix(a, ":*"); ok {
				if o == host || strings.HasPrefix(o, host+":") {
					return true
				}
			}
		}
		return false
	}
}
