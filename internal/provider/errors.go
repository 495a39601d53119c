package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProviderError is a failed send. Transient failures are retried by the
// outbox relay and nacked by the notifier; the rest are final.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString("event sink")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Permanent wraps err as a failure that retrying will not fix.
func Permanent(message string, err error) error {
	return &ProviderError{Message: message, Cause: err}
}

// sendFailure wraps a transport error. Only caller cancellation is final;
// timeouts and connection errors are worth another attempt.
func sendFailure(message string, err error) error {
	return &ProviderError{
		Message:   message,
		Transient: !errors.Is(err, context.Canceled),
		Cause:     err,
	}
}

// statusFailure classifies a non-2xx reply. Throttling, timeouts and 5xx are
// transient.
func statusFailure(statusCode int, body string) error {
	message := fmt.Sprintf("unexpected status %d", statusCode)
	if body != "" {
		message += ": " + body
	}
	return &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Transient:  retryableStatus(statusCode),
	}
}

func retryableStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusRequestTimeout:
		return true
	case statusCode >= http.StatusInternalServerError && statusCode < 600:
		return true
	}
	return false
}

// IsTransient reports whether a send error should be retried.
func IsTransient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
