package core

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestMarkStatus(t *testing.T) {
	base := errors.New("provider said no")

	assert.True(t, errors.Is(MarkStatus(base, http.StatusUnauthorized), ErrTokenExpired))
	assert.True(t, errors.Is(MarkStatus(base, http.StatusForbidden), ErrTokenExpired))
	assert.True(t, errors.Is(MarkStatus(base, http.StatusNotFound), ErrEventNotFound))
	assert.True(t, errors.Is(MarkStatus(base, http.StatusGone), ErrCursorExpired))
	assert.True(t, errors.Is(MarkStatus(base, http.StatusTooManyRequests), ErrRateLimited))
	assert.True(t, errors.Is(MarkStatus(base, http.StatusBadGateway), ErrUnavailable))

	// Unclassified 4xx propagates unmarked.
	got := MarkStatus(base, http.StatusBadRequest)
	assert.False(t, Retryable(got))
	assert.True(t, errors.Is(got, base))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrRateLimited))
	assert.True(t, Retryable(ErrUnavailable))
	assert.True(t, Retryable(errors.Wrap(ErrNetwork, "dial")))
	assert.False(t, Retryable(ErrTokenExpired))
	assert.False(t, Retryable(ErrEventNotFound))
	assert.False(t, Retryable(ErrValidation))
}

func TestUserMessage(t *testing.T) {
	msg := UserMessage(ProviderGoogle, errors.Wrap(ErrTokenExpired, "refresh rejected"))
	assert.Equal(t, "Your Google Calendar connection has expired. Please reconnect.", msg)

	msg = UserMessage(ProviderOutlook, ErrRateLimited)
	assert.Contains(t, msg, "Outlook Calendar")
	assert.Contains(t, msg, "rate limiting")

	// Internal detail must not leak into the generic fallback.
	msg = UserMessage(ProviderGoogle, errors.New("TLS handshake: x509 unknown authority"))
	assert.NotContains(t, msg, "x509")
}
