package output

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Kind       qwerr.Kind        `json:"kind"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// DetailOf flattens err into the shape shared by both output formats.
func DetailOf(err error) ErrorDetail {
	var qe *qwerr.QWalletError
	if !errors.As(err, &qe) {
		return ErrorDetail{
			Code:     qwerr.Code(err),
			Kind:     qwerr.KindOf(err),
			Message:  err.Error(),
			ExitCode: qwerr.ExitCode(err),
		}
	}

	d := ErrorDetail{
		Code:       qe.Code,
		Kind:       qe.Kind,
		Message:    qe.Message,
		Details:    qe.Details,
		Suggestion: qe.Suggestion,
		ExitCode:   qe.ExitCode,
	}
	if qe.Cause != nil {
		d.Cause = qe.Cause.Error()
	}
	return d
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: DetailOf(err)})
	}
	return formatErrorText(w, DetailOf(err))
}

func formatErrorText(w io.Writer, d ErrorDetail) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", d.Message)

	if len(d.Details) > 0 {
		sb.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, d.Details[k])
		}
	}

	if d.Cause != "" {
		fmt.Fprintf(&sb, "\nCause: %s\n", d.Cause)
	}
	if d.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", d.Suggestion)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
