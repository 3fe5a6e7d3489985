package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
)

// Collection name constants.
const (
	colCorrelation = "volshift_correlation"
	colDLQ         = "volshift_dlq"
)

// Ensure Store implements the subsystem interfaces at compile time.
var (
	_ correlation.Store = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
)

// Store is a MongoDB implementation of store.FullStore.
// The caller owns the client lifecycle; Store never disconnects it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store over db.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates indexes for the volshift collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("volshift/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colCorrelation: {
			{
				Keys:    bson.D{{Key: "resource_id", Value: 1}, {Key: "stage", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colDLQ: {
			{Keys: bson.D{{Key: "failed_at", Value: -1}}},
			{Keys: bson.D{
				{Key: "stage", Value: 1},
				{Key: "failed_at", Value: -1},
			}},
		},
	}
}
