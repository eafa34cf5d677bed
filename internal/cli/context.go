package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/cache"
	"github.com/quantumwallet/qwallet/internal/config"
	"github.com/quantumwallet/qwallet/internal/credstore"
	"github.com/quantumwallet/qwallet/internal/endpoint"
	"github.com/quantumwallet/qwallet/internal/gateway"
	"github.com/quantumwallet/qwallet/internal/metrics"
	"github.com/quantumwallet/qwallet/internal/output"
	"github.com/quantumwallet/qwallet/internal/relay"
	"github.com/quantumwallet/qwallet/internal/service/devkey"
	walletservice "github.com/quantumwallet/qwallet/internal/service/wallet"
	"github.com/quantumwallet/qwallet/internal/transport"
)

// CommandContext holds dependencies for CLI commands. Backend-facing pieces
// are built on first use so commands like version never touch the network.
type CommandContext struct {
	Cfg     *config.Config
	Log     *config.Logger
	Fmt     *output.Formatter
	Metrics *metrics.Metrics

	gw        *gateway.Gateway
	direct    *transport.DirectChannel
	base      string
	messenger *relay.WSMessenger
	creds     *credstore.Store
	forget    bool

	wallets *walletservice.Service
	keys    *devkey.Service
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(cfg *config.Config, logger *config.Logger, formatter *output.Formatter) *CommandContext {
	return &CommandContext{
		Cfg:     cfg,
		Log:     logger,
		Fmt:     formatter,
		Metrics: metrics.New(),
		creds: credstore.New(
			cfg.ResolvePath(cfg.Session.IdentityFile),
			cfg.ResolvePath(cfg.Session.CookieFile),
		),
	}
}

// Gateway returns the gateway over the configured channel, connecting it on first use.
func (c *CommandContext) Gateway(ctx context.Context) (*gateway.Gateway, error) {
	if c.gw != nil {
		return c.gw, nil
	}

	var ch transport.Channel
	if c.Cfg.IsRelayed() {
		m, err := relay.DialMessenger(ctx, c.Cfg.Relay.URL, nil, c.Log)
		if err != nil {
			return nil, err
		}
		c.messenger = m
		ch = transport.NewRelayChannel(m, c.Cfg.MessageTimeout())
	} else {
		direct, err := c.directChannel(ctx)
		if err != nil {
			return nil, err
		}
		ch = direct
	}

	gw, err := gateway.New(gateway.Options{Channel: ch, Logger: c.Log, Metrics: c.Metrics})
	if err != nil {
		return nil, err
	}
	c.gw = gw
	return gw, nil
}

// directChannel builds the HTTP channel and seeds it with the saved session.
func (c *CommandContext) directChannel(ctx context.Context) (*transport.DirectChannel, error) {
	base := c.Cfg.Backend.BaseURL
	if c.Cfg.Endpoint.ForegroundURL != "" {
		resolver, err := c.Resolver()
		if err != nil {
			return nil, err
		}
		if base, err = resolver.Resolve(ctx); err != nil {
			return nil, err
		}
	}

	ch, err := transport.NewDirectChannel(transport.DirectOptions{
		BaseURL:     base,
		Timeout:     c.Cfg.RequestTimeout(),
		RateLimiter: transport.NewRateLimiter(c.Cfg.Backend.RatePerSecond, c.Cfg.Backend.Burst),
	})
	if err != nil {
		return nil, err
	}

	if c.Cfg.Session.Persist {
		cookies, err := c.creds.Load(base)
		if err != nil {
			// A session we cannot read is the same as no session
			c.Log.Error("ignoring saved session: %v", err)
		}
		ch.SetCookies(base, cookies)
	}

	c.direct = ch
	c.base = base
	return ch, nil
}

// Resolver builds an endpoint resolver for the configured foreground URL.
func (c *CommandContext) Resolver() (*endpoint.Resolver, error) {
	return newResolver(c.Cfg, endpoint.StaticForeground{ID: "cli", URL: c.Cfg.Endpoint.ForegroundURL}, c.Metrics, c.Log)
}

func newResolver(cfg *config.Config, fg endpoint.ForegroundContext, m *metrics.Metrics, log endpoint.LogWriter) (*endpoint.Resolver, error) {
	return endpoint.NewResolver(fg, endpoint.Options{
		HostedSuffix:    cfg.Endpoint.HostedSuffix,
		LocalDefault:    cfg.Endpoint.LocalDefault,
		FallbackDefault: cfg.Endpoint.FallbackDefault,
		HealthChecker:   endpoint.NewHTTPHealthChecker(cfg.Endpoint.HealthPath, cfg.HealthTimeout()),
		CacheSize:       cfg.Endpoint.CacheSize,
		Metrics:         m,
		Logger:          log,
	})
}

// Wallets returns the wallet lifecycle service.
func (c *CommandContext) Wallets(ctx context.Context) (*walletservice.Service, error) {
	if c.wallets != nil {
		return c.wallets, nil
	}
	gw, err := c.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	log := c.Log
	c.wallets = walletservice.NewService(&walletservice.Config{
		Gateway: gw,
		Cache:   cache.NewBalances(),
		Logger:  log,
		OnTransition: func(id int64, from, to walletservice.State) {
			log.Debug("wallet %d: %s -> %s", id, from, to)
		},
	})
	return c.wallets, nil
}

// Keys returns the developer key service.
func (c *CommandContext) Keys(ctx context.Context) (*devkey.Service, error) {
	if c.keys != nil {
		return c.keys, nil
	}
	gw, err := c.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	c.keys = devkey.NewService(&devkey.Config{Gateway: gw, Logger: c.Log})
	return c.keys, nil
}

// ForgetSession drops the saved session when the command finishes.
func (c *CommandContext) ForgetSession() {
	c.forget = true
}

// Close saves the direct channel's cookies and closes the relay connection.
// In relayed mode the session lives in the relay host and nothing is saved.
func (c *CommandContext) Close() error {
	var err error
	switch {
	case c.forget:
		err = c.creds.Clear()
	case c.direct != nil && c.Cfg.Session.Persist:
		err = c.creds.Save(c.base, c.direct.Cookies(c.base))
	}

	if c.messenger != nil {
		_ = c.messenger.Close()
	}
	if c.Log != nil {
		_ = c.Log.Close()
	}
	return err
}

// commandContext returns the command's context, cancelled on interrupt.
// Each backend call carries its own timeout below this.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return signal.NotifyContext(base, os.Interrupt)
}
