package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

type recordModel struct {
	ID         string    `bson:"_id"`
	ResourceID string    `bson:"resource_id"`
	Stage      string    `bson:"stage"`
	Token      string    `bson:"token"`
	CreatedAt  time.Time `bson:"created_at"`
}

func recordID(resourceID string, stage workflow.Stage) string {
	return correlation.Key{ResourceID: resourceID, Stage: stage}.String()
}

func (m *recordModel) record() *correlation.Record {
	return &correlation.Record{ResourceID: m.ResourceID, Stage: workflow.Stage(m.Stage), Token: m.Token}
}

// PutRecord inserts r. A live record under the same key is a conflict.
func (s *Store) PutRecord(ctx context.Context, r *correlation.Record) error {
	_, err := s.db.Collection(colCorrelation).InsertOne(ctx, recordModel{
		ID:         recordID(r.ResourceID, r.Stage),
		ResourceID: r.ResourceID,
		Stage:      string(r.Stage),
		Token:      r.Token,
		CreatedAt:  now(),
	})
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return volshift.ErrWriteConflict
		}
		return fmt.Errorf("volshift/mongo: put record: %w", err)
	}
	return nil
}

// GetRecord returns the live record for the key.
func (s *Store) GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	var m recordModel
	err := s.db.Collection(colCorrelation).
		FindOne(ctx, bson.M{"_id": recordID(resourceID, stage)}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/mongo: get record: %w", err)
	}
	return m.record(), nil
}

// DeleteRecord removes the record if present.
func (s *Store) DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error {
	_, err := s.db.Collection(colCorrelation).DeleteOne(ctx, bson.M{"_id": recordID(resourceID, stage)})
	if err != nil {
		return fmt.Errorf("volshift/mongo: delete record: %w", err)
	}
	return nil
}

// TakeRecord removes and returns the record with FindOneAndDelete.
func (s *Store) TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	var m recordModel
	err := s.db.Collection(colCorrelation).
		FindOneAndDelete(ctx, bson.M{"_id": recordID(resourceID, stage)}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, volshift.ErrRecordNotFound
		}
		return nil, fmt.Errorf("volshift/mongo: take record: %w", err)
	}
	return m.record(), nil
}
