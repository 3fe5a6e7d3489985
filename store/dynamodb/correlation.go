package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/workflow"
)

func recordKey(resourceID string, stage workflow.Stage) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrResourceID: &types.AttributeValueMemberS{Value: resourceID},
		attrStage:      &types.AttributeValueMemberS{Value: string(stage)},
	}
}

// PutRecord writes r conditional on no live item under its key.
func (s *Store) PutRecord(ctx context.Context, r *correlation.Record) error {
	item := recordKey(r.ResourceID, r.Stage)
	item[attrToken] = &types.AttributeValueMemberS{Value: r.Token}
	item[attrCreatedAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.recordTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#rid)"),
		ExpressionAttributeNames: map[string]string{
			"#rid": attrResourceID,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return volshift.ErrWriteConflict
		}
		return fmt.Errorf("volshift/dynamodb: put record: %w", err)
	}
	return nil
}

// GetRecord returns the live record with a strongly consistent read.
func (s *Store) GetRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.recordTable),
		Key:            recordKey(resourceID, stage),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("volshift/dynamodb: get record: %w", err)
	}
	return recordFromItem(resourceID, stage, out.Item)
}

// DeleteRecord removes the record if present.
func (s *Store) DeleteRecord(ctx context.Context, resourceID string, stage workflow.Stage) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.recordTable),
		Key:       recordKey(resourceID, stage),
	})
	if err != nil {
		return fmt.Errorf("volshift/dynamodb: delete record: %w", err)
	}
	return nil
}

// TakeRecord deletes the item and returns what was deleted. Of two
// concurrent takes only one sees the old attributes.
func (s *Store) TakeRecord(ctx context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	out, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.recordTable),
		Key:          recordKey(resourceID, stage),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("volshift/dynamodb: take record: %w", err)
	}
	return recordFromItem(resourceID, stage, out.Attributes)
}

func recordFromItem(resourceID string, stage workflow.Stage, item map[string]types.AttributeValue) (*correlation.Record, error) {
	if len(item) == 0 {
		return nil, volshift.ErrRecordNotFound
	}
	tok, ok := item[attrToken].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("volshift/dynamodb: item %s/%s has no %s", resourceID, stage, attrToken)
	}
	return &correlation.Record{ResourceID: resourceID, Stage: stage, Token: tok.Value}, nil
}
