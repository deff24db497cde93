package output

import (
	"errors"
	"fmt"
)

// Error is a structured error with a machine-readable code, a human-readable
// message, and raw technical details for logging.
type Error struct {
	Code       string
	Message    string
	Details    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrInvalidInput(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

func ErrAuthRequired(msg string) *Error {
	return &Error{
		Code:    CodeAuthRequired,
		Message: msg,
		Hint:    "Run: sfschema auth login",
	}
}

func ErrAuthExpired(msg, details string) *Error {
	return &Error{
		Code:    CodeAuthExpired,
		Message: msg,
		Details: details,
		Hint:    "Run: sfschema auth login",
	}
}

func ErrAuthFailed(msg, details string) *Error {
	return &Error{
		Code:    CodeAuthFailed,
		Message: msg,
		Details: details,
	}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, identifier),
		HTTPStatus: 404,
	}
}

func ErrForbidden(msg, details string) *Error {
	return &Error{
		Code:       CodeForbidden,
		Message:    msg,
		Details:    details,
		HTTPStatus: 403,
	}
}

func ErrRateLimit(details string) *Error {
	return &Error{
		Code:       CodeRateLimit,
		Message:    "API request limit exceeded",
		Details:    details,
		Hint:       "Try again later",
		HTTPStatus: 403,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Details:   cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrAPI(status int, msg, details string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		Details:    details,
		HTTPStatus: status,
	}
}

// AsError coerces any error to an *Error, wrapping non-structured errors as
// generic API errors so nothing unstructured crosses the command boundary.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
