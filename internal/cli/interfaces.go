package cli

import (
	"io"

	"github.com/quantumwallet/qwallet/internal/config"
	"github.com/quantumwallet/qwallet/internal/output"
)

var (
	_ ConfigProvider = (*config.Config)(nil)
	_ ResultWriter   = (*output.Formatter)(nil)
)

// ConfigProvider is the part of the configuration read while a command starts.
type ConfigProvider interface {
	GetHome() string
	IsRelayed() bool
	GetLoggingLevel() string
	GetLoggingFile() string
	GetOutputFormat() string
	IsVerbose() bool
	// ResolvePath resolves p against the home directory.
	ResolvePath(p string) string
}

// ResultWriter writes a command's result in the selected format.
type ResultWriter interface {
	Format() output.Format
	Emit(v any, text func(w io.Writer) error) error
}
