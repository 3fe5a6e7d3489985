package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

// PutRecord inserts r. A live record under the same key is a conflict.
func (s *Store) PutRecord(ctx context.Context, r *correlation.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO volshift_correlation (resource_id, stage, token) VALUES ($1, $2, $3)`,
		r.ResourceID, string(r.Stage), r.Token,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return volshift.ErrWriteConflict
		}
		return fmt.Errorf("volshift/postgres: put record: %w", err)
	}
	return nil
}

// GetRecord returns the live record for the key.
func (s *Store) GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM volshift_correlation WHERE resource_id = $1 AND stage = $2`,
		resourceID, string(stage),
	).Scan(&token)
	if err != nil {
		if isNoRows(err) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/postgres: get record: %w", err)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: token}, nil
}

// DeleteRecord removes the record if present.
func (s *Store) DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM volshift_correlation WHERE resource_id = $1 AND stage = $2`,
		resourceID, string(stage),
	)
	if err != nil {
		return fmt.Errorf("volshift/postgres: delete record: %w", err)
	}
	return nil
}

// TakeRecord deletes the record and returns its token atomically.
func (s *Store) TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM volshift_correlation WHERE resource_id = $1 AND stage = $2 RETURNING token`,
		resourceID, string(stage),
	).Scan(&token)
	if err != nil {
		if isNoRows(err) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/postgres: take record: %w", err)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: token}, nil
}
