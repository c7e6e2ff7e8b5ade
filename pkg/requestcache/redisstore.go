package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStoreConfig holds configuration for a Redis-backed response cache.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces this store's entries within the Redis keyspace.
	KeyPrefix string
	// TTL is the uniform time-to-live applied to every entry.
	TTL time.Duration
}

// RedisStore is a ResponseCache backed by Redis. Expiry is delegated to Redis
// key TTLs, so unlike FileStore there is no lazy-expiry window: an expired
// entry is simply gone. Filtered clears scan the store's key prefix and match
// against the method and endpoint recorded in each entry.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewRedisStore creates and connects a RedisStore. It pings the Redis server
// to ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg *RedisStoreConfig, logger zerolog.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("redis store config cannot be nil")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("cache TTL must be positive")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "requestcache:"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisStore{
		client:    rdb,
		keyPrefix: prefix,
		ttl:       cfg.TTL,
		logger:    logger.With().Str("component", "RedisStore").Logger(),
	}, nil
}

// Get returns the cached payload for the request, or ErrNotFound once the key
// has expired out of Redis.
func (s *RedisStore) Get(ctx context.Context, method, endpoint string, params map[string]string) (json.RawMessage, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+Key(method, endpoint, params)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn().Err(err).Msg("Cached entry is unparsable; treating as a miss.")
		return nil, ErrNotFound
	}
	return entry.Data, nil
}

// Set stores a payload for the request with the store's TTL.
func (s *RedisStore) Set(ctx context.Context, method, endpoint string, data json.RawMessage, params map[string]string) error {
	entry := Entry{
		Data:      data,
		Timestamp: time.Now(),
		Method:    strings.ToUpper(method),
		Endpoint:  endpoint,
		Params:    params,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+Key(method, endpoint, params), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Clear removes every entry matching the filter.
func (s *RedisStore) Clear(ctx context.Context, filter Filter) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	var toDelete []string
	for iter.Next(ctx) {
		key := iter.Val()
		if filter.Method == "" && filter.Endpoint == "" {
			toDelete = append(toDelete, key)
			continue
		}
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue // Key expired mid-scan.
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			toDelete = append(toDelete, key) // Unparsable entries are dead weight.
			continue
		}
		if matches(&entry, filter) {
			toDelete = append(toDelete, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(toDelete) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	s.logger.Debug().Int("removed", len(toDelete)).Msg("Cleared cache entries.")
	return nil
}

// Stats reports entry counts. Redis drops expired keys itself, so every
// surviving entry is active.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	total := 0
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		total++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return &Stats{
		TotalEntries:  total,
		ActiveEntries: total,
		ExpirySeconds: s.ttl.Seconds(),
	}, nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
