package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

type dlqItem struct {
	ID         string     `dynamodbav:"Id"`
	Stage      string     `dynamodbav:"Stage"`
	ResourceID string     `dynamodbav:"ResourceId,omitempty"`
	Code       string     `dynamodbav:"Code"`
	Error      string     `dynamodbav:"Error,omitempty"`
	Input      string     `dynamodbav:"Input,omitempty"`
	TokenHash  string     `dynamodbav:"TokenHash,omitempty"`
	FailedAt   time.Time  `dynamodbav:"FailedAt"`
	ResolvedAt *time.Time `dynamodbav:"ResolvedAt,omitempty"`
	CreatedAt  time.Time  `dynamodbav:"CreatedAt"`
}

func toDLQItem(e *dlq.Entry) dlqItem {
	return dlqItem{
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

func fromDLQItem(it *dlqItem) (*dlq.Entry, error) {
	entryID, err := id.ParseDLQID(it.ID)
	if err != nil {
		return nil, err
	}
	e := &dlq.Entry{
		ID:         entryID,
		Stage:      workflow.Stage(it.Stage),
		ResourceID: it.ResourceID,
		Code:       it.Code,
		Error:      it.Error,
		TokenHash:  it.TokenHash,
		FailedAt:   it.FailedAt,
		ResolvedAt: it.ResolvedAt,
		CreatedAt:  it.CreatedAt,
	}
	if it.Input != "" {
		e.Input = []byte(it.Input)
	}
	return e, nil
}

func dlqKey(entryID id.DLQID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: entryID.String()},
	}
}

// PushDLQ adds an entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	item, err := attributevalue.MarshalMap(toDLQItem(entry))
	if err != nil {
		return fmt.Errorf("volshift/dynamodb: marshal dlq: %w", err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.dlqTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("volshift/dynamodb: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, newest first. The table is
// scanned and filtered client-side; the DLQ is expected to stay small.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	all, err := s.scanDLQ(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*dlq.Entry, 0, len(all))
	for _, e := range all {
		if opts.Stage != "" && e.Stage != opts.Stage {
			continue
		}
		if opts.Unresolved && e.Resolved() {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FailedAt.After(entries[j].FailedAt)
	})

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
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.dlqTable),
		Key:            dlqKey(entryID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("volshift/dynamodb: get dlq: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, volshift.ErrDLQNotFound
	}
	var it dlqItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("volshift/dynamodb: unmarshal dlq: %w", err)
	}
	return fromDLQItem(&it)
}

// ResolveDLQ marks an entry handled.
func (s *Store) ResolveDLQ(ctx context.Context, entryID id.DLQID) error {
	now, err := attributevalue.Marshal(s.now())
	if err != nil {
		return fmt.Errorf("volshift/dynamodb: marshal time: %w", err)
	}
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.dlqTable),
		Key:                       dlqKey(entryID),
		UpdateExpression:          aws.String("SET #resolved = :now"),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  map[string]string{"#resolved": "ResolvedAt", "#id": attrID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": now},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return volshift.ErrDLQNotFound
		}
		return fmt.Errorf("volshift/dynamodb: resolve dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	all, err := s.scanDLQ(ctx)
	if err != nil {
		return 0, err
	}
	var purged int64
	for _, e := range all {
		if !e.FailedAt.Before(before) {
			continue
		}
		if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.dlqTable),
			Key:       dlqKey(e.ID),
		}); err != nil {
			return purged, fmt.Errorf("volshift/dynamodb: purge dlq: %w", err)
		}
		purged++
	}
	return purged, nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	all, err := s.scanDLQ(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

func (s *Store) scanDLQ(ctx context.Context) ([]*dlq.Entry, error) {
	var out []*dlq.Entry
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:      aws.String(s.dlqTable),
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("volshift/dynamodb: scan dlq: %w", err)
		}
		var items []dlqItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("volshift/dynamodb: unmarshal dlq: %w", err)
		}
		for i := range items {
			e, err := fromDLQItem(&items[i])
			if err != nil {
				s.logger.Warn("skipping malformed dlq item", slog.String("id", items[i].ID), slog.String("error", err.Error()))
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}
