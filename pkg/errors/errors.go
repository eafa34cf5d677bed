// Package errors provides structured error handling for qwallet.
// Every failure that crosses the gateway boundary is a *QWalletError carrying a
// machine-readable code, one of the five failure kinds, and an exit code for the CLI.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Successful execution
	ExitGeneral     = 1 // General/unknown error
	ExitInput       = 2 // Invalid input
	ExitAuth        = 3 // Authentication required or rejected
	ExitNotFound    = 4 // Resource not found
	ExitPermission  = 5 // Refused by a domain rule or the backend
	ExitUnavailable = 6 // Backend or relay unreachable
)

// Kind is the failure taxonomy shared by every gateway operation.
type Kind string

// Failure kinds.
const (
	KindConnectivity Kind = "connectivity_failure"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation_rejected"
	KindApplication  Kind = "application_rejected"
	KindUnknown      Kind = "unknown"
)

// QWalletError is the structured error type for qwallet.
type QWalletError struct {
	Code       string            // Machine-readable error code
	Kind       Kind              // Failure taxonomy bucket
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *QWalletError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *QWalletError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for QWalletError by comparing codes.
func (e *QWalletError) Is(target error) bool {
	var t *QWalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// clone returns a shallow copy with its own details map.
func (e *QWalletError) clone() *QWalletError {
	c := *e
	if e.Details != nil {
		c.Details = maps.Clone(e.Details)
	}
	return &c
}

// Sentinel errors.
var (
	ErrGeneral = &QWalletError{
		Code:     "GENERAL_ERROR",
		Kind:     KindUnknown,
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &QWalletError{
		Code:     "INVALID_INPUT",
		Kind:     KindValidation,
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// Connectivity failures.
	ErrConnectivity = &QWalletError{
		Code:     "CONNECTIVITY_FAILURE",
		Kind:     KindConnectivity,
		Message:  "backend unreachable",
		ExitCode: ExitUnavailable,
	}

	ErrTimeout = &QWalletError{
		Code:     "TIMEOUT",
		Kind:     KindConnectivity,
		Message:  "request timed out",
		ExitCode: ExitUnavailable,
	}

	ErrRelayBroken = &QWalletError{
		Code:     "RELAY_BROKEN",
		Kind:     KindConnectivity,
		Message:  "relay channel closed",
		ExitCode: ExitUnavailable,
	}

	ErrRateLimited = &QWalletError{
		Code:     "RATE_LIMITED",
		Kind:     KindConnectivity,
		Message:  "request could not be scheduled",
		ExitCode: ExitUnavailable,
	}

	// Authentication.
	ErrUnauthorized = &QWalletError{
		Code:       "UNAUTHORIZED",
		Kind:       KindUnauthorized,
		Message:    "not signed in or session expired",
		Suggestion: "sign in with: qwallet login",
		ExitCode:   ExitAuth,
	}

	// Backend rejections.
	ErrApplicationRejected = &QWalletError{
		Code:     "APPLICATION_REJECTED",
		Kind:     KindApplication,
		Message:  "request rejected by backend",
		ExitCode: ExitPermission,
	}

	ErrUnknown = &QWalletError{
		Code:     "UNKNOWN_BACKEND_ERROR",
		Kind:     KindUnknown,
		Message:  "unexpected backend response",
		ExitCode: ExitGeneral,
	}

	ErrBalanceUnavailable = &QWalletError{
		Code:     "BALANCE_UNAVAILABLE",
		Kind:     KindConnectivity,
		Message:  "balance unavailable",
		ExitCode: ExitUnavailable,
	}

	// Local validation.
	ErrUnsupportedChain = &QWalletError{
		Code:     "UNSUPPORTED_CHAIN",
		Kind:     KindValidation,
		Message:  "unsupported chain",
		ExitCode: ExitInput,
	}

	ErrInvalidOption = &QWalletError{
		Code:     "INVALID_OPTION",
		Kind:     KindValidation,
		Message:  "invalid wallet option",
		ExitCode: ExitInput,
	}

	ErrInvalidAddress = &QWalletError{
		Code:     "INVALID_ADDRESS",
		Kind:     KindValidation,
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidCredentials = &QWalletError{
		Code:     "INVALID_CREDENTIALS",
		Kind:     KindValidation,
		Message:  "username and password are required",
		ExitCode: ExitInput,
	}

	ErrEmptyKeyName = &QWalletError{
		Code:     "EMPTY_KEY_NAME",
		Kind:     KindValidation,
		Message:  "API key name cannot be empty",
		ExitCode: ExitInput,
	}

	ErrInvalidProfile = &QWalletError{
		Code:     "INVALID_DEVELOPER_PROFILE",
		Kind:     KindValidation,
		Message:  "invalid developer profile",
		ExitCode: ExitInput,
	}

	ErrDeveloperRequired = &QWalletError{
		Code:       "DEVELOPER_REQUIRED",
		Kind:       KindValidation,
		Message:    "developer account is not enabled",
		Suggestion: "enable it with: qwallet developer enable",
		ExitCode:   ExitPermission,
	}

	ErrInvalidID = &QWalletError{
		Code:     "INVALID_ID",
		Kind:     KindValidation,
		Message:  "invalid resource id",
		ExitCode: ExitInput,
	}

	// Lifecycle rules.
	ErrWalletNotFound = &QWalletError{
		Code:     "WALLET_NOT_FOUND",
		Kind:     KindValidation,
		Message:  "wallet not found",
		ExitCode: ExitNotFound,
	}

	ErrKeyNotFound = &QWalletError{
		Code:     "KEY_NOT_FOUND",
		Kind:     KindValidation,
		Message:  "API key not found",
		ExitCode: ExitNotFound,
	}

	ErrDeletionRefused = &QWalletError{
		Code:     "DELETION_REFUSED",
		Kind:     KindValidation,
		Message:  "wallet deletion refused",
		ExitCode: ExitPermission,
	}

	ErrDeletionInProgress = &QWalletError{
		Code:     "DELETION_IN_PROGRESS",
		Kind:     KindValidation,
		Message:  "wallet deletion already in progress",
		ExitCode: ExitPermission,
	}

	ErrSendInProgress = &QWalletError{
		Code:     "SEND_IN_PROGRESS",
		Kind:     KindValidation,
		Message:  "a transfer from this wallet is already in progress",
		ExitCode: ExitPermission,
	}

	ErrStaleResult = &QWalletError{
		Code:     "STALE_RESULT",
		Kind:     KindValidation,
		Message:  "result discarded, wallet no longer active",
		ExitCode: ExitNotFound,
	}

	// Config-specific errors.
	ErrConfigNotFound = &QWalletError{
		Code:     "CONFIG_NOT_FOUND",
		Kind:     KindValidation,
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &QWalletError{
		Code:     "CONFIG_INVALID",
		Kind:     KindValidation,
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new QWalletError with the given code and message.
func New(code, message string) *QWalletError {
	return &QWalletError{
		Code:     code,
		Kind:     KindUnknown,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var qe *QWalletError
	if errors.As(err, &qe) {
		return &QWalletError{
			Code:       qe.Code,
			Kind:       qe.Kind,
			Message:    fmt.Sprintf("%s: %s", msg, qe.Message),
			Details:    qe.Details,
			Suggestion: qe.Suggestion,
			Cause:      qe.Cause,
			ExitCode:   qe.ExitCode,
		}
	}

	return &QWalletError{
		Code:     ErrGeneral.Code,
		Kind:     KindOf(err),
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a sentinel, keeping its code and kind.
func WithCause(sentinel *QWalletError, cause error) error {
	c := sentinel.clone()
	c.Cause = cause
	return c
}

// WithMessage replaces the human-readable message, keeping code and kind.
// Backend rejection text is surfaced this way.
func WithMessage(sentinel *QWalletError, message string) *QWalletError {
	c := sentinel.clone()
	c.Message = message
	return c
}

// WithDetails merges details into an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var qe *QWalletError
	if errors.As(err, &qe) {
		c := qe.clone()
		if c.Details == nil {
			c.Details = make(map[string]string, len(details))
		}
		maps.Copy(c.Details, details)
		return c
	}

	return &QWalletError{
		Code:     ErrGeneral.Code,
		Kind:     KindOf(err),
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var qe *QWalletError
	if errors.As(err, &qe) {
		c := qe.clone()
		c.Suggestion = suggestion
		return c
	}

	return &QWalletError{
		Code:       ErrGeneral.Code,
		Kind:       KindOf(err),
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// KindOf classifies any error into the failure taxonomy.
// Context deadlines and cancellations count as connectivity failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var qe *QWalletError
	if errors.As(err, &qe) {
		return qe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindConnectivity
	}

	return KindUnknown
}

// IsUnauthorized reports whether the caller should re-authenticate instead of retrying.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsConnectivity reports whether err is a timeout or unreachable backend.
func IsConnectivity(err error) bool {
	return KindOf(err) == KindConnectivity
}

// IsValidation reports whether err was raised by a local precondition.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var qe *QWalletError
	if errors.As(err, &qe) {
		return qe.ExitCode
	}

	if KindOf(err) == KindConnectivity {
		return ExitUnavailable
	}
	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var qe *QWalletError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ErrGeneral.Code
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
