package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RequestRecord captures the outcome of one logical client request, after
// caching and retries have been applied.
type RequestRecord struct {
	Method     string
	Endpoint   string
	StatusCode int
	Attempts   int
	FromCache  bool
	Duration   time.Duration
	OccurredAt time.Time
	Error      string
}

// Recorder receives a RequestRecord for every logical request the client
// completes. Implementations must not block the request path.
type Recorder interface {
	Record(ctx context.Context, rec *RequestRecord)
}

// Client wraps a Transport with read-through caching for GET requests, retry
// with backoff around every transport call, and targeted cache invalidation
// after mutating calls. A nil cache disables caching entirely; mutating
// requests are never served from cache either way.
type Client struct {
	baseURL   string
	transport Transport
	cache     ResponseCache
	retry     RetryPolicy
	recorder  Recorder
	logger    zerolog.Logger
}

// NewClient creates a caching client. cache may be nil to disable caching.
func NewClient(cfg *ClientConfig, transport Transport, cache ResponseCache, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client config cannot be nil")
	}
	if transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	retry := cfg.RetryPolicy()
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
		cache:     cache,
		retry:     retry,
		logger:    logger.With().Str("component", "Client").Str("base_url", cfg.BaseURL).Logger(),
	}, nil
}

// NewDefaultClient wires a client from config alone: an HTTPTransport, and a
// FileStore when a cache TTL is configured. A zero TTL disables caching.
func NewDefaultClient(cfg *ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client config cannot be nil")
	}
	transport := NewHTTPTransport(&HTTPTransportConfig{Timeout: cfg.RequestTimeout}, logger)

	var cache ResponseCache
	if cfg.CacheTTLSeconds > 0 {
		if cfg.CachePath == "" {
			return nil, errors.New("cache path is required when a cache TTL is set")
		}
		store, err := NewFileStore(&FileStoreConfig{
			Path: cfg.CachePath,
			TTL:  time.Duration(cfg.CacheTTLSeconds) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		cache = store
	}
	return NewClient(cfg, transport, cache, logger)
}

// SetRecorder attaches a request recorder. Passing nil detaches it.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// Cache exposes the client's cache store, or nil when caching is disabled.
// The client exclusively owns the store; callers should treat it as read-only
// except through the client's own request methods.
func (c *Client) Cache() ResponseCache {
	return c.cache
}

// Get performs a GET request. With caching enabled a fresh cached payload is
// returned immediately, with no transport call and no retries; on a miss the
// call goes through the retry policy and a successful result is written back
// to the cache.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	start := time.Now()

	if c.cache != nil {
		data, err := c.cache.Get(ctx, http.MethodGet, endpoint, params)
		if err == nil {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Cache hit.")
			c.record(ctx, &RequestRecord{
				Method:     http.MethodGet,
				Endpoint:   endpoint,
				StatusCode: http.StatusOK,
				FromCache:  true,
				Duration:   time.Since(start),
				OccurredAt: start,
			})
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache read failed; treating as a miss.")
		}
	}

	res := c.callWithRetry(ctx, http.MethodGet, endpoint, params, nil)
	c.recordResult(ctx, http.MethodGet, endpoint, start, res)
	if res.err != nil {
		return nil, res.err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, http.MethodGet, endpoint, res.body, params); err != nil {
			// In-memory state stays authoritative; a persist failure must not
			// fail the request.
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache write failed.")
		}
	}
	return res.body, nil
}

// Post performs a POST request. The transport call always executes; on success
// cached entries at clearPath (or at endpoint itself when clearPath is empty)
// are invalidated for all methods.
func (c *Client) Post(ctx context.Context, endpoint string, body any, clearPath string) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPost, endpoint, body, clearPath)
}

// Put performs a PUT request with the same invalidation behavior as Post.
func (c *Client) Put(ctx context.Context, endpoint string, body any, clearPath string) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPut, endpoint, body, clearPath)
}

// Delete performs a DELETE request with the same invalidation behavior as
// Post. The returned payload may be empty.
func (c *Client) Delete(ctx context.Context, endpoint string, clearPath string) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodDelete, endpoint, nil, clearPath)
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, body any, clearPath string) (json.RawMessage, error) {
	start := time.Now()

	res := c.callWithRetry(ctx, method, endpoint, nil, body)
	c.recordResult(ctx, method, endpoint, start, res)
	if res.err != nil {
		return nil, res.err
	}

	if c.cache != nil {
		scope := clearPath
		if scope == "" {
			scope = endpoint
		}
		// All methods cached at the scope path are dropped: a GET cached at
		// /api/events must not survive a POST that invalidates /api/events.
		if err := c.cache.Clear(ctx, Filter{Endpoint: scope}); err != nil {
			c.logger.Warn().Err(err).Str("scope", scope).Msg("Cache invalidation failed.")
		} else {
			c.logger.Debug().Str("scope", scope).Msg("Invalidated cache entries.")
		}
	}
	return res.body, nil
}

// callResult is the terminal state of a retry-wrapped transport call.
type callResult struct {
	body     json.RawMessage
	status   int
	attempts int
	err      error
}

// callWithRetry drives a single transport call through the retry policy.
// Backoff waits happen outside any cache lock and respect ctx cancellation.
// The last observed error is always surfaced, never swallowed.
func (c *Client) callWithRetry(ctx context.Context, method, endpoint string, params map[string]string, body any) *callResult {
	req := &Request{
		Method: method,
		URL:    c.baseURL + endpoint,
		Params: params,
		Body:   body,
	}

	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := c.transport.RoundTrip(ctx, req)
		switch {
		case err != nil:
			lastErr = err
			if !isTransient(err) {
				return &callResult{attempts: attempt, err: fmt.Errorf("%s %s: %w", method, endpoint, err)}
			}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return &callResult{body: resp.Body, status: resp.StatusCode, attempts: attempt}
		default:
			statusErr := &StatusError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: resp.Body}
			lastErr = statusErr
			lastStatus = resp.StatusCode
			if !statusErr.retryable() {
				return &callResult{status: resp.StatusCode, attempts: attempt, err: statusErr}
			}
		}

		if attempt == c.retry.MaxAttempts {
			break
		}
		wait := c.retry.Backoff(attempt)
		c.logger.Debug().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(lastErr).
			Msg("Transient failure; retrying.")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return &callResult{attempts: attempt, err: ctx.Err()}
		}
	}

	return &callResult{
		status:   lastStatus,
		attempts: c.retry.MaxAttempts,
		err:      fmt.Errorf("%s %s failed after %d attempts: %w", method, endpoint, c.retry.MaxAttempts, lastErr),
	}
}

func (c *Client) recordResult(ctx context.Context, method, endpoint string, start time.Time, res *callResult) {
	rec := &RequestRecord{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: res.status,
		Attempts:   res.attempts,
		Duration:   time.Since(start),
		OccurredAt: start,
	}
	if res.err != nil {
		rec.Error = res.err.Error()
	}
	c.record(ctx, rec)
}

func (c *Client) record(ctx context.Context, rec *RequestRecord) {
	if c.recorder != nil {
		c.recorder.Record(ctx, rec)
	}
}
