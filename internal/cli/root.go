// Package cli implements the qwallet command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and released in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/config"
	"github.com/quantumwallet/qwallet/internal/output"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Command group ids.
const (
	groupWallet  = "wallet"
	groupAccount = "account"
	groupNetwork = "network"
	groupConfig  = "config"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	relayURL     string
	contextURL   string

	// Global state initialized in PersistentPreRunE
	cmdCtx *CommandContext
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qwallet",
	Short: "Client for a quantum-wallet custody backend",
	Long: `qwallet talks to a quantum-wallet custody backend. It signs in with a
cookie session, generates and lists wallets, reads balances and history,
manages developer API keys, and can run the background relay host.

Calls go straight to the backend over HTTP, or through a relay host when
--relay is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd == helpCmd || cmd == completionCmd || isCompletionRequest(cmd) {
			return nil
		}
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	prepareHelp()
	registerCompletions()
	err := rootCmd.Execute()
	if err != nil {
		format := output.FormatText
		if cmdCtx != nil && cmdCtx.Fmt != nil {
			format = cmdCtx.Fmt.Format()
		}
		_ = output.FormatError(rootCmd.ErrOrStderr(), err, format)
		// PersistentPostRun does not run after a failed RunE
		cleanup()
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return qwerr.ExitCode(err)
}

// initGlobals loads configuration and builds the command context.
// Precedence: defaults, config file, .env, environment, flags.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	cfg, err := config.Load(config.Path(config.ExpandHome(home)))
	if err != nil {
		if !qwerr.Is(err, qwerr.ErrConfigNotFound) {
			return err
		}
		cfg = config.Defaults()
	}
	cfg.Home = home

	if err := config.LoadDotEnv(home); err != nil {
		return qwerr.WithCause(qwerr.ErrConfigInvalid, err)
	}
	if err := config.ApplyEnvironment(cfg); err != nil {
		return qwerr.WithCause(qwerr.ErrConfigInvalid, err)
	}

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		cfg.Output.DefaultFormat = outputFormat
	}
	if relayURL != "" {
		cfg.Backend.Mode = config.ModeRelayed
		cfg.Relay.URL = relayURL
	}
	if contextURL != "" {
		cfg.Endpoint.ForegroundURL = contextURL
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	formatter, err := newFormatter(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	output.SetNoticeWriter(cmd.ErrOrStderr())

	cmdCtx = NewCommandContext(cfg, openLogger(cfg), formatter)
	return nil
}

// newFormatter resolves the configured format against w.
func newFormatter(cfg ConfigProvider, w io.Writer) (*output.Formatter, error) {
	format, err := output.ParseFormat(cfg.GetOutputFormat())
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(output.DetectFormat(w, format), w), nil
}

// openLogger opens the log file under the home directory. A log file that
// cannot be opened never blocks a command.
func openLogger(cfg ConfigProvider) *config.Logger {
	level := config.ParseLogLevel(cfg.GetLoggingLevel())
	if cfg.IsVerbose() {
		level = config.LogLevelDebug
	}
	logger, err := config.NewLogger(level, cfg.ResolvePath(cfg.GetLoggingFile()))
	if err != nil {
		return config.NullLogger()
	}
	return logger
}

// cleanup persists the session and releases resources.
func cleanup() {
	if cmdCtx == nil {
		return
	}
	if err := cmdCtx.Close(); err != nil {
		output.Warnf("could not save session: %v", err)
	}
	cmdCtx = nil
}

// GetCmdContext returns the command context built for the running command.
func GetCmdContext(_ *cobra.Command) *CommandContext {
	return cmdCtx
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "qwallet data directory (default: ~/.qwallet)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "", "send calls through the relay host at this websocket URL")
	rootCmd.PersistentFlags().StringVar(&contextURL, "context-url", "", "URL of the page in use, used to pick the backend")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupWallet, Title: "Wallet Operations:"},
		&cobra.Group{ID: groupAccount, Title: "Account & Keys:"},
		&cobra.Group{ID: groupNetwork, Title: "Network & Relay:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)
	rootCmd.SetHelpCommand(helpCmd)
	rootCmd.SetHelpCommandGroupID(groupConfig)
}
