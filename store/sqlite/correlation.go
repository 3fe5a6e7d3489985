package sqlite

import (
	"context"
	"fmt"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

// PutRecord inserts r; the composite primary key rejects a live duplicate.
func (s *Store) PutRecord(ctx context.Context, r *correlation.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO volshift_correlation (resource_id, stage, token) VALUES (?, ?, ?)`,
		r.ResourceID, string(r.Stage), r.Token,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return volshift.ErrWriteConflict
		}
		return fmt.Errorf("volshift/sqlite: put record: %w", err)
	}
	return nil
}

// GetRecord returns the live record for the key.
func (s *Store) GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM volshift_correlation WHERE resource_id = ? AND stage = ?`,
		resourceID, string(stage),
	).Scan(&token)
	if err != nil {
		if isNoRows(err) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/sqlite: get record: %w", err)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: token}, nil
}

// DeleteRecord removes the record if present.
func (s *Store) DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM volshift_correlation WHERE resource_id = ? AND stage = ?`,
		resourceID, string(stage),
	)
	if err != nil {
		return fmt.Errorf("volshift/sqlite: delete record: %w", err)
	}
	return nil
}

// TakeRecord deletes the record and returns the deleted token in one
// statement.
func (s *Store) TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM volshift_correlation WHERE resource_id = ? AND stage = ? RETURNING token`,
		resourceID, string(stage),
	).Scan(&token)
	if err != nil {
		if isNoRows(err) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/sqlite: take record: %w", err)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: token}, nil
}
