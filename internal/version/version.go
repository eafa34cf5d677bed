// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build metadata, set at link time:
//
//	go build -ldflags "-X github.com/quantumwallet/qwallet/internal/version.Version=v1.2.0"
//
//nolint:gochecknoglobals // Link-time injected build metadata
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info contains build information for display.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent returns the User-Agent header sent to the backend.
func UserAgent() string {
	return fmt.Sprintf("qwallet/%s (%s/%s)", Normalize(Version), runtime.GOOS, runtime.GOARCH)
}

// Normalize strips a leading "v" and surrounding whitespace.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return "dev"
	}
	return v
}
