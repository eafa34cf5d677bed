package config

// DefaultBaseURL is the backend origin used by the direct channel when nothing else is configured.
const DefaultBaseURL = "http://localhost:5000"

// Endpoint resolution defaults.
const (
	DefaultHostedSuffix     = ".repl.co"
	DefaultLocalEndpoint    = "http://localhost:5000"
	DefaultFallbackEndpoint = "http://0.0.0.0:5000"
	DefaultHealthPath       = "/api/health"
)

// Relay defaults.
const (
	DefaultRelayListen = "127.0.0.1:5055"
	DefaultRelayURL    = "ws://127.0.0.1:5055/relay"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.qwallet",
		Backend: BackendConfig{
			Mode:           ModeDirect,
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: 30,
			RatePerSecond:  10,
			Burst:          5,
		},
		Relay: RelayConfig{
			Listen:                DefaultRelayListen,
			URL:                   DefaultRelayURL,
			AllowedOrigins:        []string{"http://localhost:*", "http://127.0.0.1:*"},
			MessageTimeoutSeconds: 30,
		},
		Endpoint: EndpointConfig{
			HostedSuffix:         DefaultHostedSuffix,
			LocalDefault:         DefaultLocalEndpoint,
			FallbackDefault:      DefaultFallbackEndpoint,
			HealthPath:           DefaultHealthPath,
			HealthTimeoutSeconds: 3,
			ForegroundURL:        "",
			CacheSize:            32,
		},
		Session: SessionConfig{
			Persist:      true,
			CookieFile:   "session.age",
			IdentityFile: "identity.txt",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "qwallet.log",
		},
	}
}
