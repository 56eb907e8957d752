// Package resilience provides retry with backoff and the error taxonomy
// shared by the external-service clients.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// maxBodyLen caps server response bodies carried in errors and remarks.
const maxBodyLen = 300

// StatusError is a non-2xx HTTP response from an external service. Body is
// truncated to 300 characters at construction.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// NewStatusError builds a StatusError, truncating the body.
func NewStatusError(statusCode int, body string) *StatusError {
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	return &StatusError{StatusCode: statusCode, Body: body}
}

// TransientError marks an error as safe to retry regardless of its shape.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as explicitly transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsNotFound reports whether the error chain carries an HTTP 404. Not-found
// responses are never retried.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}

// IsAuthFailure reports a 401/403 from the portal or platform. There is no
// in-run recovery; rows fail with a recognizable reason.
func IsAuthFailure(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == 401 || se.StatusCode == 403
}

// IsDuplicate reports whether a platform write was rejected because the
// record already exists: HTTP 409 or a body naming a duplicate.
func IsDuplicate(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == 409 {
		return true
	}
	body := strings.ToLower(se.Body)
	return strings.Contains(body, "already exist") || strings.Contains(body, "duplicate")
}

// ServerBody returns the truncated response body from the error chain, or ""
// when the error is not a StatusError.
func ServerBody(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Body
	}
	return ""
}

// IsTransient reports whether an error is safe to retry: an explicit
// TransientError, a retryable HTTP status, or a network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return IsTransientHTTPStatus(se.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status indicates a
// server-side issue worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
