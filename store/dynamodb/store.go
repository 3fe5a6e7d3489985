package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
)

// Attribute names.
const (
	attrResourceID = "ResourceId"
	attrStage      = "Stage"
	attrToken      = "TaskToken"
	attrCreatedAt  = "CreatedAt"

	attrID = "Id"
)

// Default table names.
const (
	DefaultRecordTable = "EBS_Automation_TaskTokens"
	DefaultDLQTable    = "volshift-dlq"
)

// Ensure Store implements the subsystem interfaces at compile time.
var (
	_ correlation.Store = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
)

// API is the subset of *dynamodb.Client the store calls.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Store is a DynamoDB implementation of store.FullStore.
type Store struct {
	api         API
	recordTable string
	dlqTable    string
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTables overrides the table names.
func WithTables(records, dlqTable string) Option {
	return func(s *Store) {
		if records != "" {
			s.recordTable = records
		}
		if dlqTable != "" {
			s.dlqTable = dlqTable
		}
	}
}

// New creates a store over api, usually a *dynamodb.Client.
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:         api,
		recordTable: DefaultRecordTable,
		dlqTable:    DefaultDLQTable,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates both tables on demand with PAY_PER_REQUEST billing.
// Existing tables are left untouched.
func (s *Store) Migrate(ctx context.Context) error {
	tables := []*dynamodb.CreateTableInput{
		{
			TableName: aws.String(s.recordTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(attrResourceID), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String(attrStage), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrResourceID), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrStage), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
		{
			TableName: aws.String(s.dlqTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(attrID), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrID), KeyType: types.KeyTypeHash},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	}

	for _, in := range tables {
		_, err := s.api.CreateTable(ctx, in)
		if err == nil {
			s.logger.Info("created table", slog.String("table", aws.ToString(in.TableName)))
			continue
		}
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			continue
		}
		return fmt.Errorf("volshift/dynamodb: create table %s: %w", aws.ToString(in.TableName), err)
	}
	return nil
}

// Ping describes the record table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.recordTable)})
	if err != nil {
		return fmt.Errorf("volshift/dynamodb: ping: %w", err)
	}
	return nil
}

// Close is a no-op; SDK clients hold no resources that need releasing.
func (s *Store) Close() error { return nil }
