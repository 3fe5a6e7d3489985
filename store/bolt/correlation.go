package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

func recordKey(resourceID string, stage workflow.Stage) []byte {
	return []byte(correlation.Key{ResourceID: resourceID, Stage: stage}.String())
}

// PutRecord stores r unless its key is already live.
func (s *Store) PutRecord(ctx context.Context, r *correlation.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, correlationBucket)
		if err != nil {
			return err
		}
		k := recordKey(r.ResourceID, r.Stage)
		if b.Get(k) != nil {
			return volshift.ErrWriteConflict
		}
		if err := b.Put(k, []byte(r.Token)); err != nil {
			return fmt.Errorf("volshift/bolt: put record: %w", err)
		}
		return nil
	})
}

// GetRecord returns the live record for the key.
func (s *Store) GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *correlation.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, correlationBucket)
		if err != nil {
			return err
		}
		v := b.Get(recordKey(resourceID, stage))
		if v == nil {
			return volshift.ErrRecordNotFound
		}
		// v is only valid inside the transaction.
		rec = &correlation.Record{ResourceID: resourceID, Stage: stage, Token: string(v)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecord removes the record if present.
func (s *Store) DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, correlationBucket)
		if err != nil {
			return err
		}
		if err := b.Delete(recordKey(resourceID, stage)); err != nil {
			return fmt.Errorf("volshift/bolt: delete record: %w", err)
		}
		return nil
	})
}

// TakeRecord reads and deletes the record in one write transaction.
func (s *Store) TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *correlation.Record
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, correlationBucket)
		if err != nil {
			return err
		}
		k := recordKey(resourceID, stage)
		v := b.Get(k)
		if v == nil {
			return volshift.ErrRecordNotFound
		}
		rec = &correlation.Record{ResourceID: resourceID, Stage: stage, Token: string(v)}
		if err := b.Delete(k); err != nil {
			return fmt.Errorf("volshift/bolt: take record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
