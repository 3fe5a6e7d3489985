package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
)

// Compile-time interface checks.
var (
	_ correlation.Store = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithRecordTTL expires parked tokens after d. Zero keeps them until taken.
// Step Functions task tokens live at most a year, so a TTL past the
// longest stage timeout is safe.
func WithRecordTTL(d time.Duration) Option {
	return func(s *Store) { s.recordTTL = d }
}

// Store implements store.FullStore backed by Redis.
type Store struct {
	client    redis.Cmdable
	logger    *slog.Logger
	recordTTL time.Duration
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
