package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetworkTransient is a timeout, dropped connection or retryable status
	ErrNetworkTransient = errors.New("transient network failure")

	// ErrAuthExpired is returned on 401 and for stored tokens past their expiry.
	// The credential of the scope has been cleared when it is returned.
	ErrAuthExpired = errors.New("authentication expired")

	ErrNotFound = errors.New("resource not found")

	// ErrMalformedPayload is returned when a response body cannot be decoded or
	// misses an identifier the caller requires
	ErrMalformedPayload = errors.New("malformed payload")

	ErrUnexpectedStatus = errors.New("unexpected status")

	ErrInvalidConfig = errors.New("invalid client config")
)

// transientStatuses are retried with backoff
var transientStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooEarly:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError describes a non-2xx upstream response. It unwraps to the
// sentinel matching its status, so errors.Is(err, ErrNotFound) works.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

const maxErrorBody = 512

func newStatusError(method, path string, status int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, Path: path, StatusCode: status, Body: string(body)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrAuthExpired
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case transientStatuses[e.StatusCode]:
		return ErrNetworkTransient
	default:
		return ErrUnexpectedStatus
	}
}

// Temporary reports whether the request may succeed when retried
func (e *StatusError) Temporary() bool {
	return transientStatuses[e.StatusCode]
}
