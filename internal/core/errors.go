package core

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Error kinds. Callers classify with errors.Is; causes stay attached
// through wrapping so diagnostics keep the provider's original text.
var (
	// No usable credentials or license for the requested flow.
	ErrNotConfigured = errors.New("provider not configured")
	// No valid token and refresh is not possible, or the provider
	// rejected the stored token (401/403).
	ErrTokenExpired = errors.New("token expired")
	// 429 after retries were exhausted.
	ErrRateLimited = errors.New("rate limited")
	ErrEventNotFound = errors.New("event not found")
	ErrCalendarNotFound = errors.New("calendar not found")
	// Transport-level failure (DNS, connect, TLS, timeout).
	ErrNetwork = errors.New("network error")
	// Malformed input caught before any network call.
	ErrValidation = errors.New("validation failed")
	// 5xx from the provider; retryable like ErrRateLimited but maps
	// to different user-facing text.
	ErrUnavailable = errors.New("provider unavailable")
	// The stored sync cursor is no longer usable (HTTP 410 or a
	// provider-specific "token too old" code); the next fetch must be
	// a full sync.
	ErrCursorExpired = errors.New("sync cursor expired")
	// The user cancelled an interactive flow.
	ErrCancelled = errors.New("cancelled")
)

// MarkStatus wraps err with the kind matching an HTTP status code.
// Unknown 4xx codes stay unclassified and propagate as-is.
func MarkStatus(err error, status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Mark(err, ErrTokenExpired)
	case status == http.StatusNotFound:
		return errors.Mark(err, ErrEventNotFound)
	case status == http.StatusGone:
		return errors.Mark(err, ErrCursorExpired)
	case status == http.StatusTooManyRequests:
		return errors.Mark(err, ErrRateLimited)
	case status >= 500:
		return errors.Mark(err, ErrUnavailable)
	default:
		return err
	}
}

// Retryable reports whether the failure is worth retrying: rate
// limits, 5xx, and transport errors. Everything else is terminal.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrNetwork)
}

// UserMessage maps an error to the toast text shown to the user.
// Diagnostic detail stays in the logs.
func UserMessage(p Provider, err error) string {
	name := p.DisplayName()
	switch {
	case errors.Is(err, ErrNotConfigured):
		return fmt.Sprintf("%s is not set up. Add your own app credentials or activate a license to use the built-in ones.", name)
	case errors.Is(err, ErrTokenExpired):
		return fmt.Sprintf("Your %s connection has expired. Please reconnect.", name)
	case errors.Is(err, ErrRateLimited):
		return fmt.Sprintf("%s is rate limiting requests. Syncing will resume shortly.", name)
	case errors.Is(err, ErrEventNotFound):
		return "That event no longer exists on the calendar."
	case errors.Is(err, ErrCalendarNotFound):
		return "That calendar no longer exists."
	case errors.Is(err, ErrValidation):
		return "The request was rejected before sending: " + err.Error()
	case errors.Is(err, ErrCancelled):
		return "Authorization cancelled."
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrUnavailable):
		return fmt.Sprintf("Couldn't reach %s. Check your connection and try again.", name)
	default:
		return fmt.Sprintf("Something went wrong talking to %s.", name)
	}
}
