package capture

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// The GCS client is abstracted behind small interfaces so the archiver can be
// tested without a real bucket.

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle.
type GCSObjectHandle interface {
	NewWriter(ctx context.Context) GCSWriter
}

// GCSWriter abstracts a *storage.Writer.
type GCSWriter interface {
	io.WriteCloser
}

type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter makes a concrete *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context) GCSWriter {
	return a.handle.NewWriter(ctx)
}

// ArchiverConfig holds configuration for the capture archiver.
type ArchiverConfig struct {
	BucketName   string
	ObjectPrefix string
	// Now is an injectable clock for the date component of object names.
	// Nil uses time.Now.
	Now func() time.Time
}

// Archiver uploads finished capture files to GCS, gzip-compressed, under
// date-partitioned object names.
type Archiver struct {
	client GCSClient
	config *ArchiverConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewArchiver creates an archiver for the configured bucket.
func NewArchiver(cfg *ArchiverConfig, client GCSClient, logger zerolog.Logger) (*Archiver, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Archiver{
		client: client,
		config: cfg,
		now:    now,
		logger: logger.With().Str("component", "Archiver").Logger(),
	}, nil
}

// Archive streams the file to GCS and returns the object name it was stored
// under. The local file is left in place.
func (a *Archiver) Archive(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open capture file %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	objectName := path.Join(
		a.config.ObjectPrefix,
		a.now().UTC().Format("2006/01/02"),
		fmt.Sprintf("%s-%s.gz", uuid.NewString(), filepath.Base(filePath)),
	)
	a.logger.Info().Str("object_name", objectName).Msg("Starting capture upload.")

	gcsWriter := a.client.Bucket(a.config.BucketName).Object(objectName).NewWriter(ctx)
	gz := gzip.NewWriter(gcsWriter)

	if _, err := io.Copy(gz, f); err != nil {
		_ = gz.Close()
		_ = gcsWriter.Close()
		return "", fmt.Errorf("failed to stream capture to GCS object %s: %w", objectName, err)
	}
	if err := gz.Close(); err != nil {
		_ = gcsWriter.Close()
		return "", fmt.Errorf("failed to finish compressing %s: %w", objectName, err)
	}
	if err := gcsWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS object writer for %s: %w", objectName, err)
	}

	a.logger.Info().Str("object_name", objectName).Msg("Capture archived.")
	return objectName, nil
}
