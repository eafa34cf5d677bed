// Package config provides configuration management for qwallet.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Channel modes.
const (
	ModeDirect  = "direct"
	ModeRelayed = "relayed"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Backend  BackendConfig  `yaml:"backend"`
	Relay    RelayConfig    `yaml:"relay"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Session  SessionConfig  `yaml:"session"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendConfig defines how the custody backend is reached.
type BackendConfig struct {
	Mode           string  `yaml:"mode"`
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
}

// RelayConfig defines the background relay host and the client side of the message channel.
type RelayConfig struct {
	Listen                string   `yaml:"listen"`
	URL                   string   `yaml:"url"`
	AllowedOrigins        []string `yaml:"allowed_origins"`
	MessageTimeoutSeconds int      `yaml:"message_timeout_seconds"`
}

// EndpointConfig defines the endpoint resolution rules used by the relay host.
type EndpointConfig struct {
	HostedSuffix         string `yaml:"hosted_suffix"`
	LocalDefault         string `yaml:"local_default"`
	FallbackDefault      string `yaml:"fallback_default"`
	HealthPath           string `yaml:"health_path"`
	HealthTimeoutSeconds int    `yaml:"health_timeout_seconds"`
	ForegroundURL        string `yaml:"foreground_url"`
	CacheSize            int    `yaml:"cache_size"`
}

// SessionConfig defines cookie persistence between CLI runs.
type SessionConfig struct {
	Persist      bool   `yaml:"persist"`
	CookieFile   string `yaml:"cookie_file"`
	IdentityFile string `yaml:"identity_file"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, qwerr.WithDetails(qwerr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, qwerr.WithCause(qwerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case ModeDirect, ModeRelayed:
	default:
		return qwerr.WithDetails(qwerr.ErrConfigInvalid, map[string]string{"backend.mode": c.Backend.Mode})
	}
	if c.Backend.Mode == ModeDirect && c.Backend.BaseURL == "" {
		return qwerr.WithDetails(qwerr.ErrConfigInvalid, map[string]string{"backend.base_url": "empty"})
	}
	if c.Backend.Mode == ModeRelayed && c.Relay.URL == "" {
		return qwerr.WithDetails(qwerr.ErrConfigInvalid, map[string]string{"relay.url": "empty"})
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return qwerr.WithDetails(qwerr.ErrConfigInvalid, map[string]string{"backend.timeout_seconds": "must be positive"})
	}
	return nil
}

// GetHome returns the qwallet home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// IsRelayed returns true if calls go through the relay host instead of straight to the backend.
func (c *Config) IsRelayed() bool {
	return c.Backend.Mode == ModeRelayed
}

// RequestTimeout returns the per-request transport timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// MessageTimeout returns the per-message relay timeout.
func (c *Config) MessageTimeout() time.Duration {
	if c.Relay.MessageTimeoutSeconds <= 0 {
		return c.RequestTimeout()
	}
	return time.Duration(c.Relay.MessageTimeoutSeconds) * time.Second
}

// HealthTimeout returns the endpoint health check timeout.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Endpoint.HealthTimeoutSeconds) * time.Second
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// ResolvePath expands a leading "~/" and resolves relative paths against the home directory.
func (c *Config) ResolvePath(p string) string {
	p = ExpandHome(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ExpandHome(c.Home), p)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// DefaultHome returns the default qwallet home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".qwallet"
	}
	return filepath.Join(home, ".qwallet")
}
