package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

type dlqEntryModel struct {
	ID         string     `bson:"_id"`
	Stage      string     `bson:"stage"`
	ResourceID string     `bson:"resource_id"`
	Code       string     `bson:"code"`
	Error      string     `bson:"error"`
	Input      string     `bson:"input,omitempty"`
	TokenHash  string     `bson:"token_hash"`
	FailedAt   time.Time  `bson:"failed_at"`
	ResolvedAt *time.Time `bson:"resolved_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
}

func toDLQModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:         e.ID.String(),
		Stage:      string(e.Stage),
		ResourceID: e.ResourceID,
		Code:       e.Code,
		Error:      e.Error,
		Input:      string(e.Input),
		TokenHash:  e.TokenHash,
		FailedAt:   e.FailedAt,
		ResolvedAt: e.ResolvedAt,
		CreatedAt:  e.CreatedAt,
	}
}

func fromDLQModel(m *dlqEntryModel) (*dlq.Entry, error) {
	entryID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, err
	}
	e := &dlq.Entry{
		ID:         entryID,
		Stage:      workflow.Stage(m.Stage),
		ResourceID: m.ResourceID,
		Code:       m.Code,
		Error:      m.Error,
		TokenHash:  m.TokenHash,
		FailedAt:   m.FailedAt,
		ResolvedAt: m.ResolvedAt,
		CreatedAt:  m.CreatedAt,
	}
	if m.Input != "" {
		e.Input = []byte(m.Input)
	}
	return e, nil
}

// PushDLQ adds an entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	if _, err := s.db.Collection(colDLQ).InsertOne(ctx, toDLQModel(entry)); err != nil {
		return fmt.Errorf("volshift/mongo: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	filter := bson.M{}
	if opts.Stage != "" {
		filter["stage"] = string(opts.Stage)
	}
	if opts.Unresolved {
		filter["resolved_at"] = bson.M{"$exists": false}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colDLQ).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("volshift/mongo: list dlq: %w", err)
	}
	defer cursor.Close(ctx)

	var models []dlqEntryModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("volshift/mongo: list dlq decode: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(models))
	for i := range models {
		e, convErr := fromDLQModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("volshift/mongo: list dlq convert: %w", convErr)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	var m dlqEntryModel
	err := s.db.Collection(colDLQ).FindOne(ctx, bson.M{"_id": entryID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, volshift.ErrDLQNotFound
		}
		return nil, fmt.Errorf("volshift/mongo: get dlq: %w", err)
	}
	return fromDLQModel(&m)
}

// ResolveDLQ marks an entry handled.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	res, err := s.db.Collection(colDLQ).UpdateOne(ctx,
		bson.M{"_id": entryID.String()},
		bson.M{"$set": bson.M{"resolved_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("volshift/mongo: resolve dlq: %w", err)
	}
	if res.MatchedCount == 0 {
		return volshift.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Collection(colDLQ).DeleteMany(ctx, bson.M{"failed_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("volshift/mongo: purge dlq: %w", err)
	}
	return res.DeletedCount, nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(colDLQ).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("volshift/mongo: count dlq: %w", err)
	}
	return count, nil
}
