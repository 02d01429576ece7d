// Package dynamo implements the store backends on DynamoDB.
//
// Logs live in a table keyed by (user_id, timestamp) with a global secondary
// index on date. Preferences live in a table keyed by user_id.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/store"
)

// API is the subset of the DynamoDB client used here
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Tables names the tables and index the store uses
type Tables struct {
	Logs        string
	Preferences string
	DateIndex   string
}

// Store implements store.Backend on DynamoDB
type Store struct {
	client API
	tables Tables
}

var _ store.Backend = (*Store)(nil)

// New creates a DynamoDB backed store
func New(client API, tables Tables) *Store {
	return &Store{client: client, tables: tables}
}

// logItem mirrors the stored log row; parsed_data is kept as a JSON string
type logItem struct {
	UserID     string `dynamodbav:"user_id"`
	Timestamp  string `dynamodbav:"timestamp"`
	Date       string `dynamodbav:"date"`
	Utterance  string `dynamodbav:"utterance"`
	ParsedData string `dynamodbav:"parsed_data"`
}

type preferenceItem struct {
	UserID                      string `dynamodbav:"user_id"`
	Email                       string `dynamodbav:"email"`
	EmailSummaryEnabled         bool   `dynamodbav:"email_summary_enabled"`
	FirstSeen                   string `dynamodbav:"first_seen,omitempty"`
	LastUpdatedEmailPermissions string `dynamodbav:"last_updated_email_permissions,omitempty"`
}

func toLogItem(e *models.LogEntry) (logItem, error) {
	parsed := e.ParsedData
	if parsed == nil {
		parsed = map[string]string{}
	}
	raw, err := json.Marshal(parsed)
	if err != nil {
		return logItem{}, fmt.Errorf("failed to encode parsed_data: %w", err)
	}
	return logItem{
		UserID:     e.UserID,
		Timestamp:  e.Timestamp,
		Date:       e.Date,
		Utterance:  e.Utterance,
		ParsedData: string(raw),
	}, nil
}

func (i logItem) toModel() *models.LogEntry {
	parsed := map[string]string{}
	if i.ParsedData != "" {
		// parsed_data is best effort; an undecodable value reads as empty
		_ = json.Unmarshal([]byte(i.ParsedData), &parsed)
	}
	return &models.LogEntry{
		UserID:     i.UserID,
		Timestamp:  i.Timestamp,
		Date:       i.Date,
		Utterance:  i.Utterance,
		ParsedData: parsed,
	}
}

func (i preferenceItem) toModel() *models.UserEmailPreference {
	return &models.UserEmailPreference{
		UserID:                      i.UserID,
		Email:                       i.Email,
		EmailSummaryEnabled:         i.EmailSummaryEnabled,
		FirstSeen:                   i.FirstSeen,
		LastUpdatedEmailPermissions: i.LastUpdatedEmailPermissions,
	}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// PutLog writes entry unless an item with the same key exists
func (s *Store) PutLog(ctx context.Context, entry *models.LogEntry) error {
	item, err := toLogItem(entry)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("timestamp"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build put condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tables.Logs),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to put log entry: %w", err)
	}
	return nil
}

// QueryLogsByDate queries the date index, filtering to userID when set
func (s *Store) QueryLogsByDate(ctx context.Context, date, userID string) ([]*models.LogEntry, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("date").Equal(expression.Value(date)))
	if userID != "" {
		builder = builder.WithFilter(expression.Name("user_id").Equal(expression.Value(userID)))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build date query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Logs),
		IndexName:                 aws.String(s.tables.DateIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var entries []*models.LogEntry
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query logs for %s: %w", date, err)
		}
		var items []logItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entries: %w", err)
		}
		for _, item := range items {
			entries = append(entries, item.toModel())
		}
	}
	return entries, nil
}

// ScanLogs scans the logs table, filtering to userID when set
func (s *Store) ScanLogs(ctx context.Context, userID string) ([]*models.LogEntry, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.tables.Logs)}
	if userID != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name("user_id").Equal(expression.Value(userID))).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build scan filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var entries []*models.LogEntry
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan logs: %w", err)
		}
		var items []logItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entries: %w", err)
		}
		for _, item := range items {
			entries = append(entries, item.toModel())
		}
	}
	return entries, nil
}

// GetPreference reads one preference row
func (s *Store) GetPreference(ctx context.Context, userID string) (*models.UserEmailPreference, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Preferences),
		Key:       userKey(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrNotFound
	}

	var item preferenceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preference: %w", err)
	}
	return item.toModel(), nil
}

// CreatePreference inserts pref only if the user has no row yet
func (s *Store) CreatePreference(ctx context.Context, pref *models.UserEmailPreference) error {
	av, err := attributevalue.MarshalMap(preferenceItem{
		UserID:                      pref.UserID,
		Email:                       pref.Email,
		EmailSummaryEnabled:         pref.EmailSummaryEnabled,
		FirstSeen:                   pref.FirstSeen,
		LastUpdatedEmailPermissions: pref.LastUpdatedEmailPermissions,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal preference: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("user_id"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build create condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tables.Preferences),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create preference: %w", err)
	}
	return nil
}

// UpdatePreference sets the provided fields, creating the row when missing
func (s *Store) UpdatePreference(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	var set expression.UpdateBuilder
	n := 0
	add := func(name string, value any) {
		set = set.Set(expression.Name(name), expression.Value(value))
		n++
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.EmailSummaryEnabled != nil {
		add("email_summary_enabled", *update.EmailSummaryEnabled)
	}
	if update.FirstSeen != nil {
		add("first_seen", *update.FirstSeen)
	}
	if update.LastUpdatedEmailPermissions != nil {
		add("last_updated_email_permissions", *update.LastUpdatedEmailPermissions)
	}
	if n == 0 {
		return nil
	}

	expr, err := expression.NewBuilder().WithUpdate(set).Build()
	if err != nil {
		return fmt.Errorf("failed to build preference update: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Preferences),
		Key:                       userKey(userID),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to update preference: %w", err)
	}
	return nil
}

// ScanPreferences scans the preference table
func (s *Store) ScanPreferences(ctx context.Context, enabledOnly bool) ([]*models.UserEmailPreference, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.tables.Preferences)}
	if enabledOnly {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name("email_summary_enabled").Equal(expression.Value(true))).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build scan filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var prefs []*models.UserEmailPreference
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preferences: %w", err)
		}
		var items []preferenceItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
		for _, item := range items {
			prefs = append(prefs, item.toModel())
		}
	}
	return prefs, nil
}

// ItemCount returns the table's approximate item count (refreshed by DynamoDB roughly every six hours)
func (s *Store) ItemCount(ctx context.Context, table string) (int64, error) {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	if out.Table == nil {
		return 0, fmt.Errorf("describe table %s returned no table", table)
	}
	return aws.ToInt64(out.Table.ItemCount), nil
}
