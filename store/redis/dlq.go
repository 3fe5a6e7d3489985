package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

// PushDLQ adds an entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	eID := entry.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, dlqKey(eID), dlqToMap(entry))
	pipe.ZAdd(ctx, dlqIndexKey, goredis.Z{Score: float64(entry.FailedAt.UnixMilli()), Member: eID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("volshift/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRevRange(ctx, dlqIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("volshift/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, dlqKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToDLQ(vals)
		if convErr != nil {
			s.logger.Warn("skipping malformed dlq entry", "id", eID, "error", convErr)
			continue
		}
		if opts.Stage != "" && e.Stage != opts.Stage {
			continue
		}
		if opts.Unresolved && e.Resolved() {
			continue
		}
		entries = append(entries, e)
	}

	if opts.Offset >= len(entries) {
		return nil, nil
	}
	entries = entries[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	vals, err := s.client.HGetAll(ctx, dlqKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("volshift/redis: get dlq: %w", err)
	}
	if len(vals) == 0 {
		return nil, volshift.ErrDLQNotFound
	}
	return mapToDLQ(vals)
}

// ResolveDLQ marks an entry handled.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	key := dlqKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("volshift/redis: resolve dlq exists: %w", err)
	}
	if exists == 0 {
		return volshift.ErrDLQNotFound
	}

	if err := s.client.HSet(ctx, key,
		"resolved_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err(); err != nil {
		return fmt.Errorf("volshift/redis: resolve dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, dlqIndexKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("volshift/redis: purge dlq range: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, dlqKey(eID))
		pipe.ZRem(ctx, dlqIndexKey, eID)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return purged, fmt.Errorf("volshift/redis: purge dlq del: %w", pErr)
		}
		purged++
	}
	return purged, nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, dlqIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("volshift/redis: count dlq: %w", err)
	}
	return count, nil
}

// ── helpers ──

func dlqToMap(e *dlq.Entry) map[string]any {
	m := map[string]any{
		"id":          e.ID.String(),
		"stage":       string(e.Stage),
		"resource_id": e.ResourceID,
		"code":        e.Code,
		"error":       e.Error,
		"input":       string(e.Input),
		"token_hash":  e.TokenHash,
		"failed_at":   e.FailedAt.Format(time.RFC3339Nano),
		"created_at":  e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.ResolvedAt != nil {
		m["resolved_at"] = e.ResolvedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToDLQ(m map[string]string) (*dlq.Entry, error) {
	eID, err := id.ParseDLQID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("volshift/redis: parse dlq id: %w", err)
	}
	failedAt, _ := time.Parse(time.RFC3339Nano, m["failed_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &dlq.Entry{
		ID:         eID,
		Stage:      workflow.Stage(m["stage"]),
		ResourceID: m["resource_id"],
		Code:       m["code"],
		Error:      m["error"],
		TokenHash:  m["token_hash"],
		FailedAt:   failedAt,
		CreatedAt:  createdAt,
	}
	if v := m["input"]; v != "" {
		e.Input = []byte(v)
	}
	if v := m["resolved_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.ResolvedAt = &t
	}
	return e, nil
}
