package errors

import (
	"errors"
	"fmt"
)

// Exit codes reported by the syncd process wrapper.
const (
	ExitOK             = 0
	ExitSyncFailure    = 1
	ExitConfigFailure  = 2
	ExitCleanupFailure = 3
)

// AppError provides a structured error that maps onto operator-facing
// diagnostics and process exit codes.
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ExitCode int    `json:"-"`
	Internal error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Is matches AppErrors by code so sentinel comparisons survive WithInternal copies.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// Common errors exposed to the rest of the application.
var (
	ErrMissingConfig = &AppError{
		Code:     "CONFIG_MISSING",
		Message:  "Required configuration is missing",
		ExitCode: ExitConfigFailure,
	}

	ErrAuthFailed = &AppError{
		Code:     "OKTA_AUTH_FAILED",
		Message:  "Authentication against the Okta API failed",
		ExitCode: ExitSyncFailure,
	}

	ErrSyncFailed = &AppError{
		Code:     "SYNC_FAILED",
		Message:  "Synchronization run failed",
		ExitCode: ExitSyncFailure,
	}

	ErrCleanupFailed = &AppError{
		Code:     "CLEANUP_FAILED",
		Message:  "Sync history cleanup failed",
		ExitCode: ExitCleanupFailure,
	}

	ErrInvalidCredentials = &AppError{
		Code:     "INVALID_CREDENTIALS",
		Message:  "Invalid username or password",
		ExitCode: ExitSyncFailure,
	}

	ErrAccountLocked = &AppError{
		Code:     "ACCOUNT_LOCKED",
		Message:  "Account is temporarily locked",
		ExitCode: ExitSyncFailure,
	}

	ErrNotFound = &AppError{
		Code:     "NOT_FOUND",
		Message:  "Resource not found",
		ExitCode: ExitSyncFailure,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, exitCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:     "INTERNAL_ERROR",
		Message:  message,
		ExitCode: ExitSyncFailure,
		Internal: err,
	}
}

// FromError converts a generic error into an AppError, defaulting to a sync failure.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrSyncFailed.WithInternal(err)
}

// ExitCodeFor extracts the process exit code for an error, defaulting to sync failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	return FromError(err).ExitCode
}
