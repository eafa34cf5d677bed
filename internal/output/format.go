// Package output renders command results and errors as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Format represents the output format.
type Format string

// Output format constants.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// Formatter writes command results in one resolved format.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter creates a formatter. Pass a resolved format; auto is treated as text.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: format, writer: w}
}

// Format returns the current output format.
func (f *Formatter) Format() Format {
	return f.format
}

// IsJSON reports whether results are written as JSON.
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// Emit writes v as JSON, or calls text to render it for people.
func (f *Formatter) Emit(v any, text func(w io.Writer) error) error {
	if f.IsJSON() {
		return WriteJSON(f.writer, v)
	}
	if text == nil {
		_, err := fmt.Fprintln(f.writer, v)
		return err
	}
	return text(f.writer)
}

// Print writes v as JSON or as a single text line.
func (f *Formatter) Print(v any) error {
	return f.Emit(v, nil)
}

// WriteJSON encodes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DetectFormat resolves auto: text on a terminal, JSON when piped.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto {
		return explicit
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: Fd() returns uintptr, safe conversion for term.IsTerminal
		return FormatText
	}
	return FormatJSON
}

// ParseFormat parses a format flag value. An empty value means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "auto", "":
		return FormatAuto, nil
	default:
		return FormatAuto, qwerr.WithSuggestion(
			qwerr.WithDetails(qwerr.ErrInvalidInput, map[string]string{"output": s}),
			"use one of: text, json, auto",
		)
	}
}
