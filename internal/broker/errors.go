// Package broker holds the error taxonomy shared by broker-client
// implementations and their callers.
package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// APIError is a broker-reported HTTP failure. Status codes in the 4xx range
// are business rejections and terminal; 5xx responses are transient.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker api error: status=%d code=%d %s", e.StatusCode, e.Code, e.Message)
}

// Retryable reports whether resubmitting the same request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500
}

// IsRetryable classifies transport-level failures: timeouts, 5xx responses,
// and connection resets may be retried; broker validation rejections must not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return false
}

// IsTimeout reports whether the submission outcome is unknown: the request
// may have reached the broker even though no acknowledgment came back.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
