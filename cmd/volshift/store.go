package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/volshift/cloud"
	"github.com/xraph/volshift/config"
	"github.com/xraph/volshift/store"
	"github.com/xraph/volshift/store/bolt"
	"github.com/xraph/volshift/store/dynamodb"
	"github.com/xraph/volshift/store/memory"
	"github.com/xraph/volshift/store/mongo"
	"github.com/xraph/volshift/store/postgres"
	"github.com/xraph/volshift/store/redis"
	"github.com/xraph/volshift/store/sqlite"
)

// openStore opens the configured backend. The returned release func frees
// driver clients the store does not own; call it after the store is
// closed.
func openStore(ctx context.Context, cfg config.StoreConfig, clients *cloud.Clients, logger *slog.Logger) (store.FullStore, func(context.Context), error) {
	noop := func(context.Context) {}

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), noop, nil

	case config.BackendBolt:
		s, err := bolt.Open(cfg.Path, bolt.WithLogger(logger))
		return s, noop, err

	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Path, sqlite.WithLogger(logger))
		return s, noop, err

	case config.BackendPostgres:
		s, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		return s, noop, err

	case config.BackendRedis:
		opt, err := goredis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis dsn: %w", err)
		}
		client := goredis.NewClient(opt)
		opts := []redis.Option{redis.WithLogger(logger)}
		if cfg.RecordTTL > 0 {
			opts = append(opts, redis.WithRecordTTL(cfg.RecordTTL))
		}
		release := func(context.Context) { _ = client.Close() }
		return redis.New(client, opts...), release, nil

	case config.BackendMongo:
		client, err := mongod.Connect(options.Client().ApplyURI(cfg.DSN))
		if err != nil {
			return nil, noop, fmt.Errorf("connect mongo: %w", err)
		}
		release := func(ctx context.Context) { _ = client.Disconnect(ctx) }
		return mongo.New(client.Database(cfg.Database), mongo.WithLogger(logger)), release, nil

	case config.BackendDynamoDB:
		if clients == nil || clients.DynamoDB == nil {
			return nil, noop, fmt.Errorf("dynamodb backend needs aws clients")
		}
		return dynamodb.New(clients.DynamoDB,
			dynamodb.WithLogger(logger),
			dynamodb.WithTables(cfg.RecordTable, cfg.DLQTable),
		), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
