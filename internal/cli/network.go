package cli

import (
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/config"
	"github.com/quantumwallet/qwallet/internal/endpoint"
	"github.com/quantumwallet/qwallet/internal/output"
	"github.com/quantumwallet/qwallet/internal/relay"
	"github.com/quantumwallet/qwallet/internal/transport"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	serveListen  string
	serveBaseURL string
	serveOrigins []string
)

// statusCmd reports backend health and the session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the backend and the current session",
	Long: `Check that the backend answers and show who the session belongs to.

Exits with code 6 when the backend or relay cannot be reached.`,
	Example: `  qwallet status
  qwallet status --relay ws://127.0.0.1:5055/relay -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// endpointCmd is the parent command for endpoint resolution.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Inspect backend endpoint resolution",
	Long: `Show which backend a page URL maps to. Pages on the hosted domain use their
own origin; anything else uses the local default, or the fallback when the
chosen backend does not answer its health check.`,
}

// endpointResolveCmd resolves a page URL to a backend.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var endpointResolveCmd = &cobra.Command{
	Use:   "resolve [page-url]",
	Short: "Resolve the backend for a page URL",
	Long:  `Resolve the backend base address for a page URL, probing its health.`,
	Example: `  qwallet endpoint resolve https://my-app.repl.co/dashboard
  qwallet endpoint resolve --context-url http://localhost:3000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEndpointResolve,
}

// relayCmd is the parent command for the relay host.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the background relay host",
	Long: `The relay host makes backend calls on behalf of clients that cannot reach
the backend themselves. Clients connect over a websocket and send envelopes;
the host keeps the backend session between them.`,
}

// relayServeCmd runs the relay host.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the relay until interrupted",
	Long: `Serve the relay websocket at /relay, a health check at /healthz and
Prometheus metrics at /metrics.

Without --base-url, envelopes that name no backend are sent to the backend
resolved from the configured page URL (endpoint.foreground_url), or to
backend.base_url when none is configured.`,
	Example: `  qwallet relay serve
  qwallet relay serve --listen 127.0.0.1:6000 --origin "http://localhost:*"`,
	Args: cobra.NoArgs,
	RunE: runRelayServe,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	statusCmd.GroupID = groupNetwork
	endpointCmd.GroupID = groupNetwork
	relayCmd.GroupID = groupNetwork
	rootCmd.AddCommand(statusCmd, endpointCmd, relayCmd)
	endpointCmd.AddCommand(endpointResolveCmd)
	relayCmd.AddCommand(relayServeCmd)

	relayServeCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: relay.listen, "+config.DefaultRelayListen+")")
	relayServeCmd.Flags().StringVar(&serveBaseURL, "base-url", "", "send every envelope without a base to this backend")
	relayServeCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed browser origin (repeatable, may end in :*)")
}

// statusReport is the status command's JSON shape.
type statusReport struct {
	Mode     string `json:"mode"`
	Base     string `json:"base,omitempty"`
	Relay    string `json:"relay,omitempty"`
	Backend  string `json:"backend"`
	Session  string `json:"session"`
	Username string `json:"username,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	gw, err := cc.Gateway(ctx)
	if err != nil {
		return err
	}
	health, err := gw.Health(ctx)
	if err != nil {
		return err
	}

	report := statusReport{
		Mode:    modeOf(cc.Cfg),
		Base:    health.Base,
		Backend: health.Status,
	}
	if cc.Cfg.IsRelayed() {
		report.Relay = cc.Cfg.Relay.URL
	}

	snap, err := gw.Session().Ensure(ctx)
	if err != nil {
		return err
	}
	report.Session = snap.State.String()
	if snap.Authenticated() {
		report.Username = snap.Identity.Username
	}

	return cc.Fmt.Emit(report, report.render)
}

func (r statusReport) render(w io.Writer) error {
	tbl := output.NewTable()
	tbl.SetNoHeader(true)
	tbl.AddRow("Mode:", r.Mode)
	if r.Relay != "" {
		tbl.AddRow("Relay:", r.Relay)
	}
	if r.Base != "" {
		tbl.AddRow("Backend:", r.Base+" ("+r.Backend+")")
	} else {
		tbl.AddRow("Backend:", r.Backend)
	}
	session := r.Session
	if r.Username != "" {
		session += " as " + r.Username
	}
	tbl.AddRow("Session:", session)
	return tbl.Render(w)
}

func modeOf(cfg ConfigProvider) string {
	if cfg.IsRelayed() {
		return config.ModeRelayed
	}
	return config.ModeDirect
}

func runEndpointResolve(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()

	page := cc.Cfg.Endpoint.ForegroundURL
	if len(args) == 1 {
		page = strings.TrimSpace(args[0])
	}

	resolver, err := newResolver(cc.Cfg, endpoint.StaticForeground{ID: "cli", URL: page}, cc.Metrics, cc.Log)
	if err != nil {
		return err
	}
	classified := resolver.Classify(page)
	base, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if cc.Fmt.IsJSON() {
		return output.WriteJSON(w, map[string]any{
			"page":       page,
			"classified": classified,
			"base":       base,
			"fallback":   base != classified,
		})
	}
	outln(w, base)
	if base != classified {
		output.Warnf("%s did not answer its health check; using the fallback", classified)
	}
	return nil
}

func runRelayServe(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := commandContext(cmd)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	host, err := newRelayHost(cc)
	if err != nil {
		return err
	}

	addr := serveListen
	if addr == "" {
		addr = cc.Cfg.Relay.Listen
	}
	origins := serveOrigins
	if len(origins) == 0 {
		origins = cc.Cfg.Relay.AllowedOrigins
	}

	srv := relay.NewServer(host, relay.ServerOptions{
		Addr:           addr,
		AllowedOrigins: origins,
		Metrics:        cc.Metrics,
		Logger:         cc.Log.Zap(),
	})

	output.Infof("relay listening on ws://%s%s", addr, relay.RelayPath)
	if err := srv.ListenAndServe(ctx); err != nil {
		return qwerr.WithDetails(qwerr.WithCause(qwerr.ErrGeneral, err), map[string]string{"listen": addr})
	}
	output.Info("relay stopped")
	return nil
}

func newRelayHost(cc *CommandContext) (*relay.Host, error) {
	opts := relay.HostOptions{
		BaseURL: cc.Cfg.Backend.BaseURL,
		Timeout: cc.Cfg.RequestTimeout(),
		Metrics: cc.Metrics,
		Logger:  cc.Log,
	}
	if cc.Cfg.Backend.RatePerSecond > 0 {
		opts.RateLimiter = transport.NewRateLimiter(cc.Cfg.Backend.RatePerSecond, cc.Cfg.Backend.Burst)
	}

	switch {
	case serveBaseURL != "":
		opts.BaseURL = serveBaseURL
	case cc.Cfg.Endpoint.ForegroundURL != "":
		resolver, err := cc.Resolver()
		if err != nil {
			return nil, err
		}
		opts.Resolver = resolver
	}
	return relay.NewHost(opts)
}
