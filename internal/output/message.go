package output

import (
	"fmt"
	"io"
	"os"
)

// Notices are written to stderr so stdout stays machine-readable.
var noticeWriter io.Writer = os.Stderr

// SetNoticeWriter redirects notices, e.g. to a command's error stream.
func SetNoticeWriter(w io.Writer) {
	noticeWriter = w
}

// Info prints an informational notice.
func Info(msg string) {
	_, _ = fmt.Fprintln(noticeWriter, "info: "+msg)
}

// Infof prints a formatted informational notice.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning notice.
func Warn(msg string) {
	_, _ = fmt.Fprintln(noticeWriter, "warning: "+msg)
}

// Warnf prints a formatted warning notice.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}
