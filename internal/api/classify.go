package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/forcegrid/sfschema/internal/output"
)

// Provider error codes that mean "rate limited" inside a 403. Any other 403
// falls through to Forbidden.
var rateLimitCodes = map[string]bool{
	"REQUEST_LIMIT_EXCEEDED":     true,
	"API_CURRENT_LIMIT_EXCEEDED": true,
}

// classify is the single routine turning a terminal HTTP status and provider
// payload into a structured error. Every failure path in the pipeline funnels
// through here so errors are never partially constructed.
func classify(status int, body []byte) *output.Error {
	msg, errorCode := providerError(body)

	switch status {
	case http.StatusUnauthorized:
		return output.ErrAuthExpired("Session expired", msg)

	case http.StatusForbidden:
		if rateLimitCodes[errorCode] {
			return output.ErrRateLimit(msg)
		}
		if msg == "" {
			msg = "Access denied"
		}
		return output.ErrForbidden(msg, errorCode)

	case http.StatusNotFound:
		return output.ErrNotFound("Resource", msg)

	case http.StatusBadRequest:
		if msg == "" {
			msg = "Bad request"
		}
		return output.ErrAPI(status, msg, errorCode)

	default:
		if msg == "" {
			msg = fmt.Sprintf("Request failed (HTTP %d)", status)
		}
		return output.ErrAPI(status, msg, errorCode)
	}
}

// providerError extracts a message and error code from a provider error
// payload. The provider emits either a list of {message, errorCode} records
// or a single {error, error_description} object; anything else degrades to
// the raw body as the message.
func providerError(body []byte) (msg, errorCode string) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "", ""
	}

	var records []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &records); err == nil && len(records) > 0 {
		return records[0].Message, records[0].ErrorCode
	}

	var single struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &single); err == nil && single.Error != "" {
		if single.ErrorDescription != "" {
			return single.ErrorDescription, single.Error
		}
		return single.Error, single.Error
	}

	return raw, ""
}
