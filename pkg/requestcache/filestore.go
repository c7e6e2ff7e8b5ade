package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileStoreConfig holds configuration for a disk-backed response cache.
type FileStoreConfig struct {
	// Path is the location of the persisted snapshot.
	Path string
	// TTL is the uniform time-to-live applied to every entry in the store.
	TTL time.Duration
	// Now is the clock source. It exists so tests can control elapsed time;
	// when nil, time.Now is used.
	Now func() time.Time
}

// FileStore is a keyed, expiring, disk-backed store of response payloads.
//
// The in-memory map is the single source of truth for the lifetime of the
// process; the backing file is a snapshot rewritten after every mutation and
// read once at construction. Entries already older than the TTL at load time
// are discarded and never written back. A single mutex guards every
// read-then-write sequence so a Clear cannot race a concurrent Set and
// resurrect a just-invalidated entry. No cross-process coordination is
// provided; two processes sharing a cache file may race.
type FileStore struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewFileStore creates a FileStore and synchronously loads existing state from
// cfg.Path, pruning expired entries. A missing or unparsable file is treated
// as an empty store, never as a fatal error.
func NewFileStore(cfg *FileStoreConfig, logger zerolog.Logger) (*FileStore, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, errors.New("cache file path is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("cache TTL must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &FileStore{
		path:    cfg.Path,
		ttl:     cfg.TTL,
		now:     now,
		logger:  logger.With().Str("component", "FileStore").Str("cache_file", cfg.Path).Logger(),
		entries: make(map[string]*Entry),
	}

	if pruned := s.load(); pruned > 0 {
		// Keep the on-disk file consistent with the process view.
		if err := s.persist(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist pruned cache on load.")
		}
	}
	return s, nil
}

// Get returns the cached payload for the request. An entry older than the TTL
// is treated as a miss; it stays in the map until the next mutation rewrites
// the snapshot (lazy expiry).
func (s *FileStore) Get(_ context.Context, method, endpoint string, params map[string]string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[Key(method, endpoint, params)]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(entry, s.now()) {
		return nil, ErrNotFound
	}
	return entry.Data, nil
}

// Set stores a payload for the request and rewrites the snapshot. A persist
// failure is returned so callers can warn, but the in-memory state remains
// authoritative regardless.
func (s *FileStore) Set(_ context.Context, method, endpoint string, data json.RawMessage, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[Key(method, endpoint, params)] = &Entry{
		Data:      data,
		Timestamp: s.now(),
		Method:    strings.ToUpper(method),
		Endpoint:  endpoint,
		Params:    params,
	}
	if err := s.persist(); err != nil {
		return fmt.Errorf("cache persist failed: %w", err)
	}
	return nil
}

// Clear removes every entry matching the filter and rewrites the snapshot.
func (s *FileStore) Clear(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if filter.Method == "" && filter.Endpoint == "" {
		s.entries = make(map[string]*Entry)
	} else {
		for key, entry := range s.entries {
			if matches(entry, filter) {
				delete(s.entries, key)
			}
		}
	}
	if err := s.persist(); err != nil {
		return fmt.Errorf("cache persist failed: %w", err)
	}
	return nil
}

// Stats reports entry counts against the current time without pruning.
func (s *FileStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := &Stats{
		TotalEntries:  len(s.entries),
		ExpirySeconds: s.ttl.Seconds(),
		CacheFile:     s.path,
	}
	for _, entry := range s.entries {
		if s.expired(entry, now) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}
	return stats, nil
}

// Close is a no-op; the backing file is the persisted state across restarts.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) expired(entry *Entry, now time.Time) bool {
	return now.Sub(entry.Timestamp) >= s.ttl
}

func matches(entry *Entry, filter Filter) bool {
	if filter.Method != "" && !strings.EqualFold(entry.Method, filter.Method) {
		return false
	}
	if filter.Endpoint != "" && entry.Endpoint != filter.Endpoint {
		return false
	}
	return true
}

// load reads the snapshot, dropping expired entries, and returns how many were
// dropped. Corruption is recovered locally: the store starts empty.
func (s *FileStore) load() int {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("Failed to read cache file; starting empty.")
		}
		return 0
	}

	var loaded map[string]*Entry
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.logger.Warn().Err(err).Msg("Cache file is unparsable; starting empty.")
		return 0
	}

	now := s.now()
	pruned := 0
	for key, entry := range loaded {
		if entry == nil || s.expired(entry, now) {
			pruned++
			continue
		}
		s.entries[key] = entry
	}
	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Int("kept", len(s.entries)).Msg("Pruned expired cache entries on load.")
	}
	return pruned
}

// persist rewrites the full snapshot. The write is atomic from the point of
// view of a concurrent reader of the file: data goes to a temporary path in
// the same directory first and is then renamed over the target.
func (s *FileStore) persist() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
