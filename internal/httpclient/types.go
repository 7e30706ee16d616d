package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tidwall/gjson"
)

// Response is a fully read target response
type Response struct {
	StatusCode int
	// StatusLine is the literal status line, e.g. "HTTP/1.1 500 Internal Server Error"
	StatusLine string
	Header     http.Header
	Body       []byte
}

// ErrorMessage returns the "error" member of a JSON error body, if any
func (r *Response) ErrorMessage() string {
	if len(r.Body) == 0 || !gjson.ValidBytes(r.Body) {
		return ""
	}
	return gjson.GetBytes(r.Body, "error").String()
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// IsSuccess reports whether the status code is one of the accepted codes
func (r *Response) IsSuccess(accepted ...int) bool {
	for _, code := range accepted {
		if r.StatusCode == code {
			return true
		}
	}
	return false
}

// SerializationError is returned when request arguments cannot be JSON encoded.
// Nothing is sent in that case.
type SerializationError struct {
	Err error
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to encode request body: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies transport failures
type ErrorKind string

const (
	// KindConnection means the target could not be reached
	KindConnection ErrorKind = "connection"
	// KindTimeout means the request did not complete in time
	KindTimeout ErrorKind = "timeout"
	// KindInterrupt means the request was canceled by the caller
	KindInterrupt ErrorKind = "interrupt"
	// KindInvalidURL means the target URL is malformed
	KindInvalidURL ErrorKind = "invalid_url"
	// KindUnknown covers everything else
	KindUnknown ErrorKind = "unknown"
)

// TransportError is returned when no HTTP response could be obtained
type TransportError struct {
	Kind   ErrorKind
	Method string
	URL    string
	Err    error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed (%s): %v", e.Method, e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.Canceled) {
		return KindInterrupt
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	return KindUnknown
}
