package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxTransactItems is the DynamoDB limit for one TransactWriteItems call
const MaxTransactItems = 100

// Client is the subset of the DynamoDB API the session uses
type Client interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Config holds session settings
type Config struct {
	TableName string
	MaxBatch  int
}

// Session stores every logical table in one DynamoDB table using the key
// layout described in keys.go.
type Session struct {
	client    Client
	tableName string
	maxBatch  int
	validator *abstractions.Validator
	codec     codec
	logger    *zap.Logger

	mu      sync.Mutex
	created bool
}

// NewSession creates a DynamoDB-backed session
func NewSession(client Client, reg *schema.Registry, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 || maxBatch > MaxTransactItems {
		maxBatch = MaxTransactItems
	}
	return &Session{
		client:    client,
		tableName: cfg.TableName,
		maxBatch:  maxBatch,
		validator: abstractions.NewValidator(reg),
		codec:     codec{reg: reg},
		logger:    logger,
	}
}

// CreateType is a no-op: user types are stored as nested maps
func (s *Session) CreateType(ctx context.Context, ut *schema.UserType) error {
	return nil
}

// CreateTable makes sure the shared physical table exists. Logical tables
// need no definition of their own.
func (s *Session) CreateTable(ctx context.Context, t *schema.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create table %s: %w", s.tableName, err)
		}
	}

	s.created = true
	s.logger.Info("DynamoDB table ready", zap.String("table", s.tableName))
	return nil
}

func (s *Session) Upsert(ctx context.Context, table string, row abstractions.Row) error {
	input, err := s.putInput(abstractions.UpsertStmt(table, row))
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

func (s *Session) Append(ctx context.Context, table string, row abstractions.Row) error {
	input, err := s.putInput(abstractions.AppendStmt(table, row))
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return abstractions.ErrRowExists
		}
		return fmt.Errorf("failed to append to %s: %w", table, err)
	}
	return nil
}

// Delete removes one item by its encoded key
func (s *Session) Delete(ctx context.Context, table string, key abstractions.Row) error {
	input, err := s.deleteInput(abstractions.DeleteStmt(table, key))
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (s *Session) deleteInput(st abstractions.Statement) (*dynamodb.DeleteItemInput, error) {
	checked, table, err := s.validator.CheckStatement(st)
	if err != nil {
		return nil, err
	}
	key, err := s.codec.encodeKey(table, checked.Row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s key: %w", table.Name, err)
	}
	return &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	}, nil
}

// putInput validates st and renders it as a PutItem request
func (s *Session) putInput(st abstractions.Statement) (*dynamodb.PutItemInput, error) {
	checked, table, err := s.validator.CheckStatement(st)
	if err != nil {
		return nil, err
	}
	item, err := s.codec.encodeItem(table, checked.Row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s row: %w", table.Name, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if checked.Kind == abstractions.KindAppend {
		expr, err := expression.NewBuilder().
			WithCondition(expression.Name(attrPK).AttributeNotExists()).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
	}
	return input, nil
}

// Increment adds deltas with a single ADD update. The key columns are set
// alongside so the row decodes like any other.
func (s *Session) Increment(ctx context.Context, table string, key abstractions.Row, deltas map[string]int64) error {
	checked, t, err := s.validator.CheckStatement(abstractions.IncrementStmt(table, key, deltas))
	if err != nil {
		return err
	}
	itemKey, err := s.codec.encodeKey(t, checked.Row)
	if err != nil {
		return fmt.Errorf("failed to encode %s key: %w", table, err)
	}

	var update expression.UpdateBuilder
	for i, name := range t.PrimaryKey() {
		v := expression.Value(plainValue(checked.Row[name]))
		if i == 0 {
			update = expression.Set(expression.Name(name), v)
			continue
		}
		update = update.Set(expression.Name(name), v)
	}
	for _, col := range t.RegularColumns() {
		d, ok := checked.Deltas[col.Name]
		if !ok {
			continue
		}
		update = update.Add(expression.Name(col.Name), expression.Value(d))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", table, err)
	}
	return nil
}

// Batch writes every statement in one transaction
func (s *Session) Batch(ctx context.Context, stmts []abstractions.Statement) error {
	checked, err := s.validator.CheckBatch(stmts, s.maxBatch)
	if err != nil {
		return err
	}
	if len(checked) == 0 {
		return nil
	}

	items := make([]types.TransactWriteItem, 0, len(checked))
	for _, st := range checked {
		if st.Kind == abstractions.KindDelete {
			input, err := s.deleteInput(st)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{TableName: input.TableName, Key: input.Key},
			})
			continue
		}
		input, err := s.putInput(st)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                input.TableName,
				Item:                     input.Item,
				ConditionExpression:      input.ConditionExpression,
				ExpressionAttributeNames: input.ExpressionAttributeNames,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return abstractions.ErrRowExists
				}
			}
		}
		return fmt.Errorf("failed to write batch of %d: %w", len(items), err)
	}
	return nil
}

// Query opens a paginated cursor over one partition
func (s *Session) Query(ctx context.Context, q abstractions.Query) (abstractions.Iterator, error) {
	pq, err := s.validator.Prepare(q)
	if err != nil {
		return nil, err
	}
	input, err := s.queryInput(pq)
	if err != nil {
		return nil, err
	}
	return &pageIterator{
		ctx:       ctx,
		paginator: dynamodb.NewQueryPaginator(s.client, input),
		codec:     s.codec,
		query:     pq,
		remaining: pq.Limit,
	}, nil
}

func (s *Session) queryInput(pq *abstractions.PreparedQuery) (*dynamodb.QueryInput, error) {
	pk, err := partitionKeyValue(pq.Table, pq.Partition)
	if err != nil {
		return nil, err
	}
	sk, err := sortKeyRangeFor(pq)
	if err != nil {
		return nil, err
	}

	keyCond := expression.Key(attrPK).Equal(expression.Value(pk))
	switch {
	case sk.lower != "" && sk.upper != "":
		keyCond = keyCond.And(expression.Key(attrSK).Between(expression.Value(sk.lower), expression.Value(sk.upper)))
	case sk.lower != "":
		keyCond = keyCond.And(expression.Key(attrSK).GreaterThanEqual(expression.Value(sk.lower)))
	case sk.upper != "":
		keyCond = keyCond.And(expression.Key(attrSK).LessThanEqual(expression.Value(sk.upper)))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!pq.Reverse),
	}
	// Pages are sized to the read; rows dropped by Matches pull another page.
	if pq.Limit > 0 {
		input.Limit = aws.Int32(int32(pq.Limit))
	}
	return input, nil
}

func (s *Session) Close() error {
	return nil
}

// pageIterator fetches pages on demand and re-checks every row against the
// query, since key conditions may cover a wider interval.
type pageIterator struct {
	ctx       context.Context
	paginator *dynamodb.QueryPaginator
	codec     codec
	query     *abstractions.PreparedQuery
	remaining int

	items  []map[string]types.AttributeValue
	pos    int
	row    abstractions.Row
	err    error
	closed bool
}

func (it *pageIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if it.query.Limit > 0 && it.remaining <= 0 {
		return false
	}
	for {
		for it.pos < len(it.items) {
			item := it.items[it.pos]
			it.pos++
			row, err := it.codec.decodeItem(it.query.Table, item)
			if err != nil {
				it.err = err
				return false
			}
			if !it.query.Matches(row) {
				continue
			}
			it.row = row
			it.remaining--
			return true
		}
		if !it.paginator.HasMorePages() {
			return false
		}
		page, err := it.paginator.NextPage(it.ctx)
		if err != nil {
			it.err = fmt.Errorf("failed to query %s: %w", it.query.Table.Name, err)
			return false
		}
		it.items, it.pos = page.Items, 0
	}
}

func (it *pageIterator) Row() abstractions.Row {
	return it.row
}

func (it *pageIterator) Err() error {
	return it.err
}

func (it *pageIterator) Close() error {
	it.closed = true
	return nil
}

// plainValue converts a canonical key value to a type the expression
// marshaler stores the same way the codec does
func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x.UnixMilli()
	}
	return v
}
