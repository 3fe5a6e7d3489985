package bolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
)

const (
	correlationBucket = "correlation"
	dlqBucket         = "dlq"
)

// Ensure Store implements the subsystem interfaces at compile time.
var (
	_ correlation.Store = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
)

var errNotConfigured = errors.New("volshift/bolt: store is not configured")

// Store is a bbolt-backed implementation of store.FullStore.
type Store struct {
	db     *bbolt.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (creating if needed) the database file at path.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("volshift/bolt: path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("volshift/bolt: open: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate creates the buckets.
func (s *Store) Migrate(_ context.Context) error {
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{correlationBucket, dlqBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("volshift/bolt: create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// Ping reports whether the file is still open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("volshift/bolt: %s bucket is missing; run Migrate", name)
	}
	return b, nil
}
