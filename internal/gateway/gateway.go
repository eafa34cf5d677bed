// Package gateway exposes the backend's resources as typed operations.
//
// Every operation validates its input locally first, so a rejected input never
// reaches the transport. Failures are mapped onto the qwerr failure kinds, and a
// 401 from any call drops the shared session to Anonymous.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quantumwallet/qwallet/internal/metrics"
	"github.com/quantumwallet/qwallet/internal/session"
	"github.com/quantumwallet/qwallet/internal/transport"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Backend paths.
const (
	PathLogin           = "/api/auth/login"
	PathRegister        = "/api/auth/register"
	PathLogout          = "/api/auth/logout"
	PathUser            = "/api/user"
	PathWallets         = "/api/wallet"
	PathGenerate        = "/api/wallet/generate"
	PathBalance         = "/api/wallet/balance"
	PathTransactions    = "/api/transactions"
	PathSend            = "/api/transaction/send"
	PathTestConfig      = "/api/developer/test-wallet-config"
	PathDeveloperEnable = "/api/developer/enable"
	PathDeveloperKeys   = "/api/developer/keys"
	PathHealth          = "/api/health"
)

// Operation names used in logs and metrics.
const (
	OpLogin           = "login"
	OpRegister        = "register"
	OpLogout          = "logout"
	OpCurrentUser     = "current_user"
	OpGenerateWallet  = "generate_wallet"
	OpListWallets     = "list_wallets"
	OpGetBalance      = "get_balance"
	OpGetTransactions = "get_transactions"
	OpDeleteWallet    = "delete_wallet"
	OpSendTransaction = "send_transaction"
	OpTestConfig      = "test_wallet_config"
	OpListKeys        = "list_developer_keys"
	OpCreateKey       = "create_developer_key"
	OpDisableKey      = "disable_developer_key"
	OpEnableDeveloper = "enable_developer"
	OpHealth          = "health"
	OpLoginURL        = "login_url"
)

// LogWriter is the logging surface used by the gateway.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures a Gateway.
type Options struct {
	// Channel carries requests to the backend. Required.
	Channel transport.Channel

	// Session is shared with other gateways on the same channel. A new store is
	// created when nil.
	Session *session.Store

	Logger  LogWriter
	Metrics *metrics.Metrics
}

// Gateway performs backend operations over a transport channel.
type Gateway struct {
	channel transport.Channel
	session *session.Store
	logger  LogWriter
	metrics *metrics.Metrics
}

// New creates a gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Channel == nil {
		return nil, qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"field": "channel"})
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	g := &Gateway{
		channel: opts.Channel,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	g.session = opts.Session
	if g.session == nil {
		g.session = session.NewStore(g.fetchIdentity, session.Options{
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		})
	}
	return g, nil
}

// Session returns the session store the gateway keeps current.
func (g *Gateway) Session() *session.Store {
	return g.session
}

// Channel returns the transport channel in use.
func (g *Gateway) Channel() transport.Channel {
	return g.channel
}

// observe records the outcome of an operation. Use with a named error return.
func (g *Gateway) observe(operation string, start time.Time, err *error) {
	g.metrics.RecordGatewayCall(operation, time.Since(start), *err)
	switch {
	case *err == nil:
	case qwerr.IsValidation(*err):
		g.logger.Debug("%s rejected before sending: %v", operation, *err)
	default:
		g.logger.Debug("%s failed: %v", operation, *err)
	}
}

// send performs one request and classifies the failure without touching the session.
func (g *Gateway) send(ctx context.Context, operation, method, path string, body any) ([]byte, error) {
	req, err := transport.NewRequest(operation, method, path, body)
	if err != nil {
		return nil, qwerr.WithCause(qwerr.ErrInvalidInput, err)
	}

	resp, err := g.channel.Send(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if rej := rejectedBody(resp.Body); rej != nil {
		return nil, rej
	}
	return resp.Body, nil
}

// call is send plus session invalidation on Unauthorized.
func (g *Gateway) call(ctx context.Context, operation, method, path string, body any) ([]byte, error) {
	data, err := g.send(ctx, operation, method, path, body)
	if qwerr.IsUnauthorized(err) {
		g.logger.Debug("%s: session rejected, invalidating", operation)
		g.session.Invalidate()
	}
	return data, err
}

// requireSession ensures a signed-in identity before an identity-requiring call.
func (g *Gateway) requireSession(ctx context.Context, developer bool) (session.Snapshot, error) {
	snap, err := g.session.Ensure(ctx)
	if err != nil {
		return snap, err
	}
	if !snap.Authenticated() {
		return snap, qwerr.ErrUnauthorized
	}
	if developer && !snap.Identity.IsDeveloper {
		return snap, qwerr.ErrDeveloperRequired
	}
	return snap, nil
}

// CurrentUser queries the backend identity. A rejected session is Unauthorized.
func (g *Gateway) CurrentUser(ctx context.Context) (_ *session.Identity, err error) {
	defer g.observe(OpCurrentUser, time.Now(), &err)

	id, err := g.fetchIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, qwerr.ErrUnauthorized
	}
	return id, nil
}

// fetchIdentity is the session store's fetcher. It must not invalidate the
// session itself, or it would supersede its own refresh.
func (g *Gateway) fetchIdentity(ctx context.Context) (*session.Identity, error) {
	data, err := g.send(ctx, OpCurrentUser, http.MethodGet, PathUser, nil)
	if err != nil {
		return nil, err
	}
	return parseIdentity(data)
}

// parseIdentity reads a user object, bare or under "user". JSON null means no user.
func parseIdentity(data []byte) (*session.Identity, error) {
	if !gjson.ValidBytes(data) {
		return nil, decodeError(OpCurrentUser, errInvalidJSON)
	}
	root := gjson.ParseBytes(data)
	if u := root.Get("user"); u.Exists() {
		root = u
	}
	if root.Type == gjson.Null || !root.IsObject() {
		return nil, nil //nolint:nilnil // no user is a valid answer
	}

	var id session.Identity
	if err := json.Unmarshal([]byte(root.Raw), &id); err != nil {
		return nil, decodeError(OpCurrentUser, err)
	}
	if id.UserID == 0 && id.Username == "" {
		return nil, nil //nolint:nilnil // empty object is no user
	}
	return &id, nil
}

// Health checks that the backend answers.
func (g *Gateway) Health(ctx context.Context) (_ *Health, err error) {
	defer g.observe(OpHealth, time.Now(), &err)

	data, err := g.send(ctx, OpHealth, http.MethodGet, PathHealth, nil)
	if err != nil {
		return nil, err
	}
	h := &Health{Status: "ok"}
	if s := gjson.GetBytes(data, "status"); s.Exists() {
		h.Status = s.String()
	}
	if d, ok := g.channel.(interface{ BaseURL() string }); ok {
		h.Base = d.BaseURL()
	}
	return h, nil
}

// LoginURL returns the backend's login page, as reported by the channel.
func (g *Gateway) LoginURL(ctx context.Context) (_ string, err error) {
	defer g.observe(OpLoginURL, time.Now(), &err)

	pager, ok := g.channel.(transport.LoginPager)
	if !ok {
		return "", qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"channel": string(g.channel.Kind())})
	}
	u, err := pager.LoginPage(ctx)
	if err != nil {
		return "", classify(err)
	}
	return u, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
