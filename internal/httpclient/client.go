// Package httpclient provides the JSON transport used to talk to replication targets
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stacklok/content-replicator/internal/versions"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// APIPrefix is the path segment all target endpoints live under
	APIPrefix = "replicator"

	// APIKeyHeader carries the shared secret of a target
	APIKeyHeader = "X-Replicator-Api-Key"
)

// Endpoint addresses a replication target
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Client sends JSON requests to replication targets
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/stacklok/content-replicator/internal/httpclient Client
type Client interface {
	// Do sends arguments JSON encoded to {baseURL}/replicator/{path}.
	// Any HTTP status is returned as a Response, errors are reserved for
	// encoding and transport failures.
	Do(ctx context.Context, endpoint Endpoint, method, path string, arguments any) (*Response, error)
}

// DefaultClient is the default Client implementation
type DefaultClient struct {
	client    *http.Client
	userAgent string
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithTimeout sets the overall timeout of a single request.
// A zero timeout keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *DefaultClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithTransport replaces the round tripper requests are sent with
func WithTransport(transport http.RoundTripper) Option {
	return func(c *DefaultClient) {
		c.client.Transport = transport
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(c *DefaultClient) {
		c.userAgent = userAgent
	}
}

// NewDefaultClient creates a client with tracing instrumentation on the default transport
func NewDefaultClient(opts ...Option) *DefaultClient {
	c := &DefaultClient{
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: "content-replicator/" + versions.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do implements Client
func (c *DefaultClient) Do(
	ctx context.Context, endpoint Endpoint, method, path string, arguments any,
) (*Response, error) {
	body, err := encodeArguments(arguments)
	if err != nil {
		return nil, err
	}

	requestURL, err := BuildURL(endpoint.BaseURL, path)
	if err != nil {
		return nil, &TransportError{Kind: KindInvalidURL, Method: method, URL: endpoint.BaseURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Kind: KindInvalidURL, Method: method, URL: requestURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, endpoint.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Kind: classify(err), Method: method, URL: requestURL, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Use LimitReader to prevent reading more than MaxResponseSize
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	responseBody, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, &TransportError{Kind: classify(err), Method: method, URL: requestURL, Err: err}
	}
	if int64(len(responseBody)) > MaxResponseSize {
		return nil, &TransportError{
			Kind:   KindUnknown,
			Method: method,
			URL:    requestURL,
			Err:    fmt.Errorf("response size exceeds maximum allowed size of %d bytes", MaxResponseSize),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		StatusLine: fmt.Sprintf("%s %s", resp.Proto, resp.Status),
		Header:     resp.Header,
		Body:       responseBody,
	}, nil
}

// BuildURL joins a target base URL, the API prefix and a resource path
func BuildURL(baseURL, path string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("base URL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: host is empty", baseURL)
	}
	return strings.TrimRight(baseURL, "/") + "/" + APIPrefix + "/" + strings.TrimLeft(path, "/"), nil
}

// encodeArguments returns the JSON body for a request, nil arguments encode as {}
func encodeArguments(arguments any) ([]byte, error) {
	if arguments == nil {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(arguments)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return body, nil
}
