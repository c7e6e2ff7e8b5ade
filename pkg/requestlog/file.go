package requestlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/illmade-knight/go-integrations/pkg/requestcache"
	"github.com/rs/zerolog"
)

// FileRecorder appends one JSON record per line to a local log file. Writes
// happen on the request path, so failures are logged rather than surfaced.
type FileRecorder struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
}

// NewFileRecorder opens (or creates) the log file in append mode.
func NewFileRecorder(path string, logger zerolog.Logger) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open request log file %s: %w", path, err)
	}
	return &FileRecorder{
		file:   f,
		logger: logger.With().Str("component", "FileRecorder").Logger(),
	}, nil
}

// Record implements requestcache.Recorder.
func (r *FileRecorder) Record(_ context.Context, rec *requestcache.RequestRecord) {
	line, err := json.Marshal(NewRecord(rec))
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to marshal request record.")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to append request record.")
	}
}

// Close flushes and closes the underlying log file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close request log file: %w", err)
	}
	return nil
}
