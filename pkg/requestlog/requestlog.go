// Package requestlog records the outcome of API requests made through the
// caching client. Records can be appended to a local JSONL file or batched
// into an analytical store such as BigQuery.
package requestlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-integrations/pkg/requestcache"
)

// Record is the persisted form of a single request outcome.
type Record struct {
	ID         string    `json:"id" bigquery:"id"`
	Method     string    `json:"method" bigquery:"method"`
	Endpoint   string    `json:"endpoint" bigquery:"endpoint"`
	StatusCode int       `json:"status_code" bigquery:"status_code"`
	Attempts   int       `json:"attempts" bigquery:"attempts"`
	Cached     bool      `json:"cached" bigquery:"cached"`
	DurationMS int64     `json:"duration_ms" bigquery:"duration_ms"`
	Error      string    `json:"error,omitempty" bigquery:"error"`
	CreatedAt  time.Time `json:"created_at" bigquery:"created_at"`
}

// NewRecord converts a client request outcome into a Record with a fresh ID.
func NewRecord(rec *requestcache.RequestRecord) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Method:     rec.Method,
		Endpoint:   rec.Endpoint,
		StatusCode: rec.StatusCode,
		Attempts:   rec.Attempts,
		Cached:     rec.FromCache,
		DurationMS: rec.Duration.Milliseconds(),
		Error:      rec.Error,
		CreatedAt:  rec.OccurredAt,
	}
}

// BatchSink is a destination for batches of records. It abstracts the
// analytical store (BigQuery, Postgres, etc.).
type BatchSink interface {
	InsertBatch(ctx context.Context, records []*Record) error
	Close() error
}
