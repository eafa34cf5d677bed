package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel selects how much the file logger records.
type LogLevel int

// Log levels, from silent to everything.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelDebug
)

// silent is above every zap level, so nothing passes it.
const silent = zapcore.FatalLevel + 1

//nolint:gochecknoglobals // read-only lookup table
var levelNames = map[string]LogLevel{
	"off":   LogLevelOff,
	"none":  LogLevelOff,
	"error": LogLevelError,
	"debug": LogLevelDebug,
}

// ParseLogLevel maps a configured name onto a level. Unknown names mean error.
func ParseLogLevel(s string) LogLevel {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return LogLevelError
}

func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelDebug:
		return "debug"
	}
	return "error"
}

func (l LogLevel) threshold() zapcore.Level {
	switch l {
	case LogLevelOff:
		return silent
	case LogLevelDebug:
		return zapcore.DebugLevel
	}
	return zapcore.ErrorLevel
}

// Logger is a printf-style front for a zap core writing to one file. The
// gateway, relay host and lifecycles log through it.
type Logger struct {
	atom  zap.AtomicLevel
	sugar *zap.SugaredLogger

	closeOnce sync.Once
	file      io.Closer
}

// NewLogger appends to the file at path, creating it with owner-only
// permissions. Off or an empty path gives a logger that writes nothing and
// creates no file.
func NewLogger(level LogLevel, path string) (*Logger, error) {
	if level == LogLevelOff || path == "" {
		return NullLogger(), nil
	}

	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, err
	}

	l := NewWriterLogger(level, f)
	l.file = f
	return l, nil
}

// NewWriterLogger logs to w. Lines look like
// "2024-05-01 10:00:00.000	DEBUG	gateway call list_wallets".
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = ""

	atom := zap.NewAtomicLevelAt(level.threshold())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), atom)
	return &Logger{atom: atom, sugar: zap.New(core).Sugar()}
}

// NullLogger discards everything.
func NullLogger() *Logger {
	return &Logger{atom: zap.NewAtomicLevelAt(silent), sugar: zap.NewNop().Sugar()}
}

// Level reports the current level.
func (l *Logger) Level() LogLevel {
	switch l.atom.Level() {
	case zapcore.DebugLevel:
		return LogLevelDebug
	case zapcore.ErrorLevel:
		return LogLevelError
	}
	return LogLevelOff
}

func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

// Zap exposes the core for components that log with fields.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// Close flushes and closes the file. Later calls do nothing.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.sugar.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
