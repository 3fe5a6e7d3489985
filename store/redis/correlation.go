package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

// PutRecord parks r.Token with SET NX.
func (s *Store) PutRecord(ctx context.Context, r *correlation.Record) error {
	ok, err := s.client.SetNX(ctx, recordKey(r.ResourceID, r.Stage), r.Token, s.recordTTL).Result()
	if err != nil {
		return fmt.Errorf("volshift/redis: put record: %w", err)
	}
	if !ok {
		return volshift.ErrWriteConflict
	}
	return nil
}

// GetRecord returns the live record for the key.
func (s *Store) GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	token, err := s.client.Get(ctx, recordKey(resourceID, stage)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/redis: get record: %w", err)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: token}, nil
}

// DeleteRecord removes the record if present.
func (s *Store) DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error {
	if err := s.client.Del(ctx, recordKey(resourceID, stage)).Err(); err != nil {
		return fmt.Errorf("volshift/redis: delete record: %w", err)
	}
	return nil
}

// TakeRecord removes and returns the record with GETDEL (Redis >= 6.2).
func (s *Store) TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	token, err := s.client.GetDel(ctx, recordKey(resourceID, stage)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/redis: take record: %w", err)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: token}, nil
}
