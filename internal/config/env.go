package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environment variable names.
const (
	EnvHome           = "QWALLET_HOME"
	EnvBaseURL        = "QWALLET_BASE_URL"
	EnvMode           = "QWALLET_MODE"
	EnvRelayURL       = "QWALLET_RELAY_URL"
	EnvContextURL     = "QWALLET_CONTEXT_URL"
	EnvTimeoutSeconds = "QWALLET_TIMEOUT_SECONDS"
	EnvOutputFormat   = "QWALLET_OUTPUT_FORMAT"
	EnvVerbose        = "QWALLET_VERBOSE"
	EnvLogLevel       = "QWALLET_LOG_LEVEL"
	EnvNoColor        = "NO_COLOR"
)

// DotEnvFile is the name of the optional environment file inside the home directory.
const DotEnvFile = ".env"

// overrides mirrors the environment variables that may override file configuration.
// Every field is a string so an unset variable is distinguishable from a zero value.
type overrides struct {
	Home           string `envconfig:"QWALLET_HOME"`
	BaseURL        string `envconfig:"QWALLET_BASE_URL"`
	Mode           string `envconfig:"QWALLET_MODE"`
	RelayURL       string `envconfig:"QWALLET_RELAY_URL"`
	ContextURL     string `envconfig:"QWALLET_CONTEXT_URL"`
	TimeoutSeconds string `envconfig:"QWALLET_TIMEOUT_SECONDS"`
	OutputFormat   string `envconfig:"QWALLET_OUTPUT_FORMAT"`
	Verbose        string `envconfig:"QWALLET_VERBOSE"`
	LogLevel       string `envconfig:"QWALLET_LOG_LEVEL"`
}

// LoadDotEnv loads <home>/.env into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(home string) error {
	path := filepath.Join(ExpandHome(home), DotEnvFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) error {
	var o overrides
	if err := envconfig.Process("", &o); err != nil {
		return err
	}

	if o.Home != "" {
		cfg.Home = o.Home
	}

	if o.BaseURL != "" {
		cfg.Backend.BaseURL = sanitizeURL(o.BaseURL)
	}

	if o.Mode != "" {
		cfg.Backend.Mode = strings.ToLower(strings.TrimSpace(o.Mode))
	}

	if o.RelayURL != "" {
		cfg.Relay.URL = sanitizeURL(o.RelayURL)
	}

	if o.ContextURL != "" {
		cfg.Endpoint.ForegroundURL = sanitizeURL(o.ContextURL)
	}

	if o.TimeoutSeconds != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(o.TimeoutSeconds)); err == nil && secs > 0 {
			cfg.Backend.TimeoutSeconds = secs
		}
	}

	if o.OutputFormat != "" {
		cfg.Output.DefaultFormat = strings.ToLower(o.OutputFormat)
	}

	if o.Verbose != "" {
		cfg.Output.Verbose = parseBool(o.Verbose)
	}

	if o.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(o.LogLevel)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	return nil
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// sanitizeURL trims whitespace, quotes and a trailing slash left over from copy-paste.
func sanitizeURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.Trim(u, `"'`)
	return strings.TrimRight(u, "/")
}
