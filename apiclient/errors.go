package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	ierrors "github.com/jrsteele09/dropzone-client/internal/errors"
)

// NetworkError covers connectivity failures, timeouts and cancelled requests.
// It is always safe to offer a retry for a NetworkError.
type NetworkError struct {
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network timeout: %v", e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ierrors.ErrNetwork }

// ValidationDetail is one entry of the detail array a 400 response may carry.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// HTTPError is a non-2xx response, or a 2xx whose envelope reported
// success=false. Interpretation of the status is left to the caller.
type HTTPError struct {
	Status           int
	Message          string
	EmailUnconfirmed bool
	Details          []ValidationDetail
	Body             []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, http.StatusText(e.Status))
}

func (e *HTTPError) Is(target error) bool { return target == ierrors.ErrHTTPStatus }

// UnknownError wraps anything that is neither a transport nor an HTTP failure,
// e.g. a 2xx response whose body could not be decoded.
type UnknownError struct {
	Err error
}

func (e *UnknownError) Error() string { return fmt.Sprintf("unknown api error: %v", e.Err) }

func (e *UnknownError) Unwrap() error { return e.Err }

type errorBody struct {
	Error            string             `json:"error"`
	Message          string             `json:"message"`
	EmailUnconfirmed bool               `json:"emailUnconfirmed"`
	Details          []ValidationDetail `json:"details"`
}

// newHTTPError parses the body on a best-effort basis; an unparseable body
// still yields an HTTPError with the raw bytes attached.
func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{Status: status, Body: body}
	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		e.Message = parsed.Error
		if e.Message == "" {
			e.Message = parsed.Message
		}
		e.EmailUnconfirmed = parsed.EmailUnconfirmed
		e.Details = parsed.Details
	}
	return e
}

func newNetworkError(err error) *NetworkError {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
	return &NetworkError{Err: err, Timeout: timeout}
}

// AsHTTPError returns the HTTPError in err's chain, if any.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if he, ok := AsHTTPError(err); ok {
		return he.Status
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

func IsRateLimited(err error) bool { return StatusCode(err) == http.StatusTooManyRequests }

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRetryable reports whether err is transient: network failures, timeouts,
// 408, 429 and 5xx. Validation and auth failures are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsNetwork(err) {
		return true
	}
	status := StatusCode(err)
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}
