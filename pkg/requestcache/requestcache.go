// Package requestcache provides a time-bounded response cache and an HTTP-shaped
// client that composes read-through caching, retry with backoff, and targeted
// cache invalidation around mutating calls.
package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by a ResponseCache when no fresh entry exists for a
// request. A miss is not a failure; it is the normal trigger for a transport call.
var ErrNotFound = errors.New("response not found in cache")

// Entry is a single cached response together with the request that produced it.
// This is also the persisted form.
type Entry struct {
	Data      json.RawMessage   `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	Endpoint  string            `json:"endpoint"`
	Params    map[string]string `json:"params,omitempty"`
}

// Filter selects cached entries for removal. Empty fields match everything, so
// the zero Filter clears the whole store. Method matching is case-insensitive;
// endpoint matching is exact.
type Filter struct {
	Method   string
	Endpoint string
}

// Stats describes the state of a cache store at a point in time. Collecting
// stats never prunes entries.
type Stats struct {
	TotalEntries   int     `json:"total_entries"`
	ActiveEntries  int     `json:"active_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	ExpirySeconds  float64 `json:"expiry_seconds"`
	CacheFile      string  `json:"cache_file,omitempty"`
}

// ResponseCache is the contract between the caching client and a cache store.
type ResponseCache interface {
	// Get returns the cached payload for the request, or ErrNotFound on a miss
	// or an expired entry.
	Get(ctx context.Context, method, endpoint string, params map[string]string) (json.RawMessage, error)
	// Set stores a successful response payload for the request.
	Set(ctx context.Context, method, endpoint string, data json.RawMessage, params map[string]string) error
	// Clear removes every entry matching the filter. Removing nothing is not an error.
	Clear(ctx context.Context, filter Filter) error
	// Stats reports entry counts against the current time.
	Stats(ctx context.Context) (*Stats, error)
	io.Closer
}
