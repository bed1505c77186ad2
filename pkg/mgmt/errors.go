package mgmt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConfigurationError reports invalid client construction arguments
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid management client configuration: %s %s", e.Field, e.Reason)
}

// ServerError is the structured error body returned by the management endpoint
type ServerError struct {
	Message   string
	Throwable string // decoded stack trace, when the server sent one
}

func (e *ServerError) String() string {
	if e.Throwable == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, firstLine(e.Throwable))
}

// RequestFailedError reports a request that failed permanently or after
// exhausting the retry budget. It always wraps the last underlying cause.
type RequestFailedError struct {
	Method     string
	URL        string
	Attempts   int
	StatusCode int
	Server     *ServerError
	Err        error
}

func (e *RequestFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed after %d attempt(s)", e.Method, e.URL, e.Attempts)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Server != nil && e.Server.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Server.String())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// ResourceShapeError reports a response document missing an expected field or link
type ResourceShapeError struct {
	URL   string
	Field string
	Err   error
}

func (e *ResourceShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unexpected document shape at %s: %v", e.URL, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("unexpected document shape at %s: field %q: %v", e.URL, e.Field, e.Err)
	}
	return fmt.Sprintf("unexpected document shape at %s: missing field %q", e.URL, e.Field)
}

func (e *ResourceShapeError) Unwrap() error {
	return e.Err
}

// statusError is the per-attempt failure for a response with status >= 400
type statusError struct {
	StatusCode int
	Server     *ServerError
}

func (e *statusError) Error() string {
	if e.Server != nil && e.Server.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Server.Message)
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// permanentError marks an attempt failure that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsTransient reports whether a single attempt failure is worth retrying:
// transport errors, timeouts and 408/429/5xx responses are; other 4xx
// responses, malformed requests and cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// Connection refused/reset, EOF and timeouts surface as transport errors
	return true
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
