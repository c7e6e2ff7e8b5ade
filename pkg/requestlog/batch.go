package requestlog

import (
	"context"
	"sync"
	"time"

	"github.com/illmade-knight/go-integrations/pkg/requestcache"
	"github.com/rs/zerolog"
)

// BatchRecorderConfig holds configuration for the BatchRecorder.
type BatchRecorderConfig struct {
	BatchSize     int
	FlushInterval time.Duration // How often to flush a partial batch.
	InsertTimeout time.Duration // The timeout for a single flush operation.
}

// BatchRecorder collects request records and flushes them to a BatchSink in
// size- or interval-triggered batches. It implements requestcache.Recorder;
// Record never blocks the request path, a full buffer drops the record with
// a warning.
type BatchRecorder struct {
	config    *BatchRecorderConfig
	sink      BatchSink
	logger    zerolog.Logger
	inputChan chan *Record
	wg        sync.WaitGroup
}

// NewBatchRecorder creates a new BatchRecorder.
func NewBatchRecorder(config *BatchRecorderConfig, sink BatchSink, logger zerolog.Logger) *BatchRecorder {
	return &BatchRecorder{
		config:    config,
		sink:      sink,
		logger:    logger.With().Str("component", "BatchRecorder").Logger(),
		inputChan: make(chan *Record, config.BatchSize*2),
	}
}

// Start begins the batching worker. The passed context controls the worker's
// lifecycle.
func (b *BatchRecorder) Start(ctx context.Context) {
	b.logger.Info().
		Int("batch_size", b.config.BatchSize).
		Dur("flush_interval", b.config.FlushInterval).
		Msg("Starting BatchRecorder worker...")
	b.wg.Add(1)
	go b.worker(ctx)
}

// Stop gracefully shuts down the BatchRecorder, flushing any buffered
// records. The context bounds how long shutdown may take.
func (b *BatchRecorder) Stop(ctx context.Context) error {
	b.logger.Info().Msg("Stopping BatchRecorder...")
	close(b.inputChan)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info().Msg("BatchRecorder worker stopped gracefully.")
	case <-ctx.Done():
		b.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for BatchRecorder worker to stop.")
		return ctx.Err()
	}

	if err := b.sink.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Error closing underlying batch sink")
	}
	b.logger.Info().Msg("BatchRecorder stopped.")
	return nil
}

// Record implements requestcache.Recorder.
func (b *BatchRecorder) Record(_ context.Context, rec *requestcache.RequestRecord) {
	select {
	case b.inputChan <- NewRecord(rec):
	default:
		b.logger.Warn().Str("endpoint", rec.Endpoint).Msg("Record buffer full; dropping request record.")
	}
}

// worker collects records into a batch and flushes it.
func (b *BatchRecorder) worker(ctx context.Context) {
	defer b.wg.Done()
	batch := make([]*Record, 0, b.config.BatchSize)
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The service is shutting down, flush any remaining records.
			b.flush(context.Background(), batch)
			return

		case rec, ok := <-b.inputChan:
			if !ok {
				b.flush(ctx, batch)
				return
			}
			batch = append(batch, rec)
			if len(batch) >= b.config.BatchSize {
				b.flush(ctx, batch)
				batch = make([]*Record, 0, b.config.BatchSize)
				// Reset the ticker to prevent an immediate, unnecessary flush.
				ticker.Reset(b.config.FlushInterval)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(ctx, batch)
				batch = make([]*Record, 0, b.config.BatchSize)
			}
		}
	}
}

func (b *BatchRecorder) flush(ctx context.Context, batch []*Record) {
	if len(batch) == 0 {
		return
	}

	insertCtx, cancel := context.WithTimeout(ctx, b.config.InsertTimeout)
	defer cancel()

	if err := b.sink.InsertBatch(insertCtx, batch); err != nil {
		b.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to insert record batch.")
		return
	}
	b.logger.Debug().Int("batch_size", len(batch)).Msg("Successfully flushed record batch.")
}
