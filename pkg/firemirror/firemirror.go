// Package firemirror maintains an in-memory mirror of Firestore collections.
// Each configured collection is watched through a snapshot listener; documents
// missing keys relative to a null-document template are patched in place, both
// locally and in Firestore, so consumers always see a complete shape.
package firemirror

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-integrations/pkg/maputil"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document is a decoded Firestore document.
type Document = map[string]any

// Change classifies a document change observed by a listener.
type Change int

const (
	ChangeAdded Change = iota + 1
	ChangeModified
	ChangeRemoved
)

// CollectionConfig describes one watched collection.
type CollectionConfig struct {
	// NullDocument is the template a complete document must cover. Keys it
	// has that a live document lacks are patched in with the template values.
	NullDocument Document

	// OnSnapshot is called after every applied snapshot with a copy of the
	// collection's current state. Optional.
	OnSnapshot func(collection string, docs map[string]Document)

	// OnUpdate is called for every added or modified document. Optional.
	OnUpdate func(collection string, docID string, doc Document)
}

// MirrorConfig holds the collections a Mirror watches.
type MirrorConfig struct {
	Collections map[string]CollectionConfig
}

// Mirror watches Firestore collections and keeps a local copy of their
// documents. Accessors return deep copies so callers can never corrupt the
// mirror's state.
type Mirror struct {
	config *MirrorConfig
	client *firestore.Client
	logger zerolog.Logger

	mu   sync.RWMutex
	docs map[string]map[string]Document

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMirror creates a Mirror for the configured collections. The client may
// be nil when the mirror is fed externally through ApplyChange; Start then
// returns an error.
func NewMirror(cfg *MirrorConfig, client *firestore.Client, logger zerolog.Logger) (*Mirror, error) {
	if cfg == nil || len(cfg.Collections) == 0 {
		return nil, errors.New("at least one collection must be configured")
	}

	docs := make(map[string]map[string]Document, len(cfg.Collections))
	for name := range cfg.Collections {
		docs[name] = make(map[string]Document)
	}

	return &Mirror{
		config: cfg,
		client: client,
		logger: logger.With().Str("component", "Mirror").Logger(),
		docs:   docs,
	}, nil
}

// Start begins listening to all configured collections. Listeners run until
// Stop is called or ctx is cancelled.
func (m *Mirror) Start(ctx context.Context) error {
	if m.client == nil {
		return errors.New("cannot start listeners without a firestore client")
	}

	listenCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for name := range m.config.Collections {
		m.wg.Add(1)
		go m.listen(listenCtx, name)
	}
	m.logger.Info().Int("collections", len(m.config.Collections)).Msg("Mirror listeners started.")
	return nil
}

// Stop cancels all listeners and waits for them to exit. The context bounds
// how long shutdown may take.
func (m *Mirror) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Mirror listeners stopped.")
		return nil
	case <-ctx.Done():
		m.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for mirror listeners to stop.")
		return ctx.Err()
	}
}

func (m *Mirror) listen(ctx context.Context, collection string) {
	defer m.wg.Done()
	logger := m.logger.With().Str("collection", collection).Logger()

	iter := m.client.Collection(collection).Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			logger.Error().Err(err).Msg("Snapshot listener failed.")
			return
		}

		for _, dc := range snap.Changes {
			change := ChangeAdded
			switch dc.Kind {
			case firestore.DocumentModified:
				change = ChangeModified
			case firestore.DocumentRemoved:
				change = ChangeRemoved
			}

			var data Document
			if change != ChangeRemoved {
				data = dc.Doc.Data()
			}
			patched, err := m.ApplyChange(collection, change, dc.Doc.Ref.ID, data)
			if err != nil {
				logger.Warn().Err(err).Str("doc_id", dc.Doc.Ref.ID).Msg("Failed to apply document change.")
				continue
			}
			if patched {
				// Write the completed document back so Firestore converges on
				// the null-document shape.
				if err := m.writeThrough(ctx, collection, dc.Doc.Ref.ID); err != nil {
					logger.Warn().Err(err).Str("doc_id", dc.Doc.Ref.ID).Msg("Failed to patch document in Firestore.")
				}
			}
		}

		if handler := m.config.Collections[collection].OnSnapshot; handler != nil {
			handler(collection, m.Collection(collection))
		}
	}
}

// ApplyChange updates the mirror with a single document change. It is called
// by the snapshot listeners, and can be used directly to feed the mirror from
// another source (for example a replayed export). The returned bool reports
// whether the document was missing keys and got patched against the null
// document.
func (m *Mirror) ApplyChange(collection string, change Change, docID string, data Document) (bool, error) {
	cfg, ok := m.config.Collections[collection]
	if !ok {
		return false, fmt.Errorf("collection %s is not configured", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if change == ChangeRemoved {
		delete(m.docs[collection], docID)
		return false, nil
	}

	doc := copyDocument(data)
	if doc == nil {
		doc = Document{}
	}
	patched := false
	if cfg.NullDocument != nil {
		patched = maputil.PatchMissing(doc, cfg.NullDocument)
	}
	m.docs[collection][docID] = doc

	if cfg.OnUpdate != nil {
		cfg.OnUpdate(collection, docID, copyDocument(doc))
	}
	return patched, nil
}

// Document returns a copy of a single mirrored document.
func (m *Mirror) Document(collection, docID string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs, ok := m.docs[collection]
	if !ok {
		return nil, false
	}
	doc, ok := docs[docID]
	if !ok {
		return nil, false
	}
	return copyDocument(doc), true
}

// Collection returns a copy of a mirrored collection's current state.
func (m *Mirror) Collection(collection string) map[string]Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Document, len(m.docs[collection]))
	for id, doc := range m.docs[collection] {
		out[id] = copyDocument(doc)
	}
	return out
}

// SetDocument writes a document to Firestore and updates the mirror
// immediately, without waiting for the listener to observe the write.
func (m *Mirror) SetDocument(ctx context.Context, collection, docID string, doc Document) error {
	if _, ok := m.config.Collections[collection]; !ok {
		return fmt.Errorf("collection %s is not configured", collection)
	}
	if m.client == nil {
		return errors.New("cannot write without a firestore client")
	}

	if _, err := m.client.Collection(collection).Doc(docID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore set for %s/%s: %w", collection, docID, err)
	}

	m.mu.Lock()
	m.docs[collection][docID] = copyDocument(doc)
	m.mu.Unlock()
	return nil
}

func (m *Mirror) writeThrough(ctx context.Context, collection, docID string) error {
	doc, ok := m.Document(collection, docID)
	if !ok {
		return nil
	}
	if _, err := m.client.Collection(collection).Doc(docID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore set for %s/%s: %w", collection, docID, err)
	}
	return nil
}

// copyDocument deep-copies a document through its maps and slices.
func copyDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
