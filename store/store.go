// Package store defines the aggregate persistence interface. Each subsystem
// (correlation, dlq) defines its own store interface; backends implement
// correlation.Store and, where they can, dlq.Store.
package store

import (
	"context"

	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
)

// Store is the persistence interface every backend satisfies.
type Store interface {
	correlation.Store

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}

// FullStore is a backend that also keeps the dead letter queue.
type FullStore interface {
	Store
	dlq.Store
}
