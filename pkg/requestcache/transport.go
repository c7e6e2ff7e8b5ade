package requestcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Request is a single logical HTTP call as seen by a Transport.
type Request struct {
	Method  string
	URL     string
	Params  map[string]string
	Body    any
	Headers map[string]string
}

// Response is the transport-level outcome of a request. A non-success status
// code is still a Response, not an error; classifying it is the caller's job.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Transport performs a single HTTP-shaped call. The caching client is agnostic
// to the concrete transport; tests inject fakes, production wiring uses
// HTTPTransport.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransportConfig holds configuration for the net/http-backed transport.
type HTTPTransportConfig struct {
	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	// Headers are applied to every request, before per-request headers.
	Headers map[string]string
}

// HTTPTransport is the production Transport. Request bodies are encoded as
// JSON; response bodies are returned raw.
type HTTPTransport struct {
	client  *http.Client
	headers map[string]string
	logger  zerolog.Logger
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(cfg *HTTPTransportConfig, logger zerolog.Logger) *HTTPTransport {
	var timeout time.Duration
	var headers map[string]string
	if cfg != nil {
		timeout = cfg.Timeout
		headers = cfg.Headers
	}
	return &HTTPTransport{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
		logger:  logger.With().Str("component", "HTTPTransport").Logger(),
	}
}

// RoundTrip performs one attempt of the request.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if len(req.Params) > 0 {
		q := url.Values{}
		for k, v := range req.Params {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", httpResp.StatusCode).
		Msg("Transport call completed.")

	return &Response{StatusCode: httpResp.StatusCode, Body: payload}, nil
}
