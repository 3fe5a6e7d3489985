package dynamodb_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	dynamostore "github.com/xraph/volshift/store/dynamodb"
)

var _ dynamostore.API = (*fakeDynamo)(nil)

// fakeDynamo models the handful of DynamoDB semantics the store relies
// on: key schemas, attribute_(not_)exists conditions, ALL_OLD deletes and
// single-assignment SET updates. Every call is serialised.
type fakeDynamo struct {
	mu     sync.Mutex
	keys   map[string][]string
	tables map[string]map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		keys:   make(map[string][]string),
		tables: make(map[string]map[string]map[string]types.AttributeValue),
	}
}

func (f *fakeDynamo) itemKey(table string, item map[string]types.AttributeValue) (string, error) {
	names, ok := f.keys[table]
	if !ok {
		return "", &types.ResourceNotFoundException{Message: aws.String("no table " + table)}
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		v, ok := item[n].(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("missing key attribute %s", n)
		}
		parts = append(parts, v.Value)
	}
	return strings.Join(parts, "\x00"), nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	if _, ok := f.keys[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	var names []string
	for _, k := range in.KeySchema {
		names = append(names, aws.ToString(k.AttributeName))
	}
	f.keys[name] = names
	f.tables[name] = make(map[string]map[string]types.AttributeValue)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[aws.ToString(in.TableName)]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k, err := f.itemKey(table, in.Item)
	if err != nil {
		return nil, err
	}
	_, exists := f.tables[table][k]
	if cond := aws.ToString(in.ConditionExpression); strings.HasPrefix(cond, "attribute_not_exists") && exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	f.tables[table][k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k, err := f.itemKey(table, in.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: copyItem(f.tables[table][k])}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k, err := f.itemKey(table, in.Key)
	if err != nil {
		return nil, err
	}
	old := f.tables[table][k]
	delete(f.tables[table], k)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k, err := f.itemKey(table, in.Key)
	if err != nil {
		return nil, err
	}
	item, exists := f.tables[table][k]
	if strings.HasPrefix(aws.ToString(in.ConditionExpression), "attribute_exists") && !exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	if !exists {
		item = copyItem(in.Key)
		f.tables[table][k] = item
	}

	// Only "SET #name = :value" is supported.
	fields := strings.Fields(aws.ToString(in.UpdateExpression))
	if len(fields) != 4 || fields[0] != "SET" || fields[2] != "=" {
		return nil, fmt.Errorf("unsupported update expression %q", aws.ToString(in.UpdateExpression))
	}
	name := fields[1]
	if strings.HasPrefix(name, "#") {
		name = in.ExpressionAttributeNames[name]
	}
	item[name] = in.ExpressionAttributeValues[fields[3]]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	rows, ok := f.tables[table]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range rows {
		out.Items = append(out.Items, copyItem(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
