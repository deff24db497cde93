// Package output provides JSON envelope formatting, styled terminal
// rendering, and the structured error taxonomy shared by every command.
package output

// Exit codes for the CLI process.
const (
	ExitOK           = 0 // Success
	ExitUsage        = 1 // Invalid arguments or flags
	ExitNotFound     = 2 // Resource not found
	ExitAuthRequired = 3 // Not authenticated
	ExitAuthExpired  = 4 // Token present but unusable
	ExitAuthFailed   = 5 // OAuth flow misconfigured or lock timeout
	ExitForbidden    = 6 // Access denied
	ExitRateLimit    = 7 // Rate limited
	ExitNetwork      = 8 // Connection/DNS/timeout error
	ExitAPI          = 9 // Server returned an error
)

// Error codes for the JSON envelope.
const (
	CodeInvalidInput = "invalid_input"
	CodeNotFound     = "not_found"
	CodeAuthRequired = "auth_required"
	CodeAuthExpired  = "auth_expired"
	CodeAuthFailed   = "auth_failed"
	CodeForbidden    = "forbidden"
	CodeRateLimit    = "rate_limit"
	CodeNetwork      = "network"
	CodeAPI          = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeInvalidInput:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuthRequired:
		return ExitAuthRequired
	case CodeAuthExpired:
		return ExitAuthExpired
	case CodeAuthFailed:
		return ExitAuthFailed
	case CodeForbidden:
		return ExitForbidden
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	default:
		return ExitAPI
	}
}
