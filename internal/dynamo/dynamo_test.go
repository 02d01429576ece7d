package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/store"
)

type mockAPI struct {
	putItemFunc       func(ctx context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	getItemFunc       func(ctx context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	updateItemFunc    func(ctx context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	queryFunc         func(ctx context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scanFunc          func(ctx context.Context, in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	describeTableFunc func(ctx context.Context, in *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*mockAPI)(nil)

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.putItemFunc(ctx, in)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.getItemFunc(ctx, in)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return m.updateItemFunc(ctx, in)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.queryFunc(ctx, in)
}

func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return m.scanFunc(ctx, in)
}

func (m *mockAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return m.describeTableFunc(ctx, in)
}

var testTables = Tables{Logs: "JotJotLogs", Preferences: "prefs", DateIndex: "date-index"}

func mustMarshal(t *testing.T, v any) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		t.Fatalf("MarshalMap: %v", err)
	}
	return av
}

func TestStore_PutLog(t *testing.T) {
	t.Parallel()

	var got *dynamodb.PutItemInput
	api := &mockAPI{putItemFunc: func(_ context.Context, in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		got = in
		return &dynamodb.PutItemOutput{}, nil
	}}

	entry := models.NewLogEntry("u1", "2024-03-01T08:00:00.000000", "took 2 advil",
		models.ParsedFields{Amount: "2", Unit: "advil", Action: "took", Substance: "advil"})
	if err := New(api, testTables).PutLog(context.Background(), entry); err != nil {
		t.Fatalf("PutLog() error = %v", err)
	}

	if aws.ToString(got.TableName) != "JotJotLogs" {
		t.Errorf("TableName = %q", aws.ToString(got.TableName))
	}
	if !strings.Contains(aws.ToString(got.ConditionExpression), "attribute_not_exists") {
		t.Errorf("ConditionExpression = %q, want attribute_not_exists", aws.ToString(got.ConditionExpression))
	}

	var item logItem
	if err := attributevalue.UnmarshalMap(got.Item, &item); err != nil {
		t.Fatalf("UnmarshalMap: %v", err)
	}
	if item.Date != "2024-03-01" {
		t.Errorf("date = %q", item.Date)
	}
	if !strings.Contains(item.ParsedData, `"amount":"2"`) {
		t.Errorf("parsed_data = %q, want JSON with amount", item.ParsedData)
	}
}

func TestStore_PutLogCollision(t *testing.T) {
	t.Parallel()

	api := &mockAPI{putItemFunc: func(context.Context, *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}}

	err := New(api, testTables).PutLog(context.Background(), models.NewLogEntry("u1", "2024-03-01T08:00:00", "x", models.ParsedFields{}))
	if !errors.Is(err, store.ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestStore_QueryLogsByDatePaginates(t *testing.T) {
	t.Parallel()

	first := mustMarshal(t, logItem{UserID: "u1", Timestamp: "2024-03-01T09:00:00", Date: "2024-03-01", Utterance: "b", ParsedData: `{"action":"took"}`})
	second := mustMarshal(t, logItem{UserID: "u1", Timestamp: "2024-03-01T08:00:00", Date: "2024-03-01", Utterance: "a", ParsedData: "not json"})

	calls := 0
	api := &mockAPI{queryFunc: func(_ context.Context, in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		calls++
		if aws.ToString(in.IndexName) != "date-index" {
			t.Errorf("IndexName = %q", aws.ToString(in.IndexName))
		}
		if in.FilterExpression == nil {
			t.Error("expected a user_id filter expression")
		}
		if calls == 1 {
			return &dynamodb.QueryOutput{
				Items:            []map[string]types.AttributeValue{first},
				LastEvaluatedKey: map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: "u1"}},
			}, nil
		}
		if in.ExclusiveStartKey == nil {
			t.Error("expected ExclusiveStartKey on the second page")
		}
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{second}}, nil
	}}

	entries, err := New(api, testTables).QueryLogsByDate(context.Background(), "2024-03-01", "u1")
	if err != nil {
		t.Fatalf("QueryLogsByDate() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 query calls, got %d", calls)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ParsedData["action"] != "took" {
		t.Errorf("parsed_data not decoded: %v", entries[0].ParsedData)
	}
	if len(entries[1].ParsedData) != 0 {
		t.Errorf("undecodable parsed_data should read as empty, got %v", entries[1].ParsedData)
	}
}

func TestStore_QueryLogsByDateError(t *testing.T) {
	t.Parallel()

	api := &mockAPI{queryFunc: func(context.Context, *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		return nil, errors.New("ProvisionedThroughputExceeded")
	}}
	if _, err := New(api, testTables).QueryLogsByDate(context.Background(), "2024-03-01", ""); err == nil {
		t.Error("expected error")
	}
}

func TestStore_GetPreference(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		api := &mockAPI{getItemFunc: func(context.Context, *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{}, nil
		}}
		_, err := New(api, testTables).GetPreference(context.Background(), "u1")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		item := mustMarshal(t, preferenceItem{UserID: "u1", Email: "a@b.c", EmailSummaryEnabled: true})
		api := &mockAPI{getItemFunc: func(_ context.Context, in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			if aws.ToString(in.TableName) != "prefs" {
				t.Errorf("TableName = %q", aws.ToString(in.TableName))
			}
			return &dynamodb.GetItemOutput{Item: item}, nil
		}}
		p, err := New(api, testTables).GetPreference(context.Background(), "u1")
		if err != nil {
			t.Fatalf("GetPreference() error = %v", err)
		}
		if !p.Eligible() {
			t.Errorf("expected eligible preference, got %+v", p)
		}
	})
}

func TestStore_CreatePreferenceExists(t *testing.T) {
	t.Parallel()

	api := &mockAPI{putItemFunc: func(context.Context, *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		return nil, &types.ConditionalCheckFailedException{}
	}}
	err := New(api, testTables).CreatePreference(context.Background(), &models.UserEmailPreference{UserID: "u1"})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_UpdatePreference(t *testing.T) {
	t.Parallel()

	var got *dynamodb.UpdateItemInput
	api := &mockAPI{updateItemFunc: func(_ context.Context, in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		got = in
		return &dynamodb.UpdateItemOutput{}, nil
	}}

	email := ""
	enabled := false
	s := New(api, testTables)
	if err := s.UpdatePreference(context.Background(), "u1", models.PreferenceUpdate{Email: &email, EmailSummaryEnabled: &enabled}); err != nil {
		t.Fatalf("UpdatePreference() error = %v", err)
	}
	if !strings.HasPrefix(aws.ToString(got.UpdateExpression), "SET ") {
		t.Errorf("UpdateExpression = %q", aws.ToString(got.UpdateExpression))
	}
	if len(got.ExpressionAttributeNames) != 2 || len(got.ExpressionAttributeValues) != 2 {
		t.Errorf("expected two names and values, got %v / %v", got.ExpressionAttributeNames, got.ExpressionAttributeValues)
	}

	got = nil
	if err := s.UpdatePreference(context.Background(), "u1", models.PreferenceUpdate{}); err != nil {
		t.Fatalf("empty update error = %v", err)
	}
	if got != nil {
		t.Error("empty update must not call UpdateItem")
	}
}

func TestStore_ScanPreferencesEnabledOnly(t *testing.T) {
	t.Parallel()

	item := mustMarshal(t, preferenceItem{UserID: "u1", Email: "a@b.c", EmailSummaryEnabled: true})
	api := &mockAPI{scanFunc: func(_ context.Context, in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
		if in.FilterExpression == nil {
			t.Error("expected filter for enabledOnly")
		}
		return &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{item}}, nil
	}}

	prefs, err := New(api, testTables).ScanPreferences(context.Background(), true)
	if err != nil {
		t.Fatalf("ScanPreferences() error = %v", err)
	}
	if len(prefs) != 1 || prefs[0].UserID != "u1" {
		t.Errorf("unexpected prefs %+v", prefs)
	}
}

func TestStore_ScanLogsAllUsers(t *testing.T) {
	t.Parallel()

	api := &mockAPI{scanFunc: func(_ context.Context, in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
		if in.FilterExpression != nil {
			t.Error("unexpected filter when scanning all users")
		}
		return &dynamodb.ScanOutput{}, nil
	}}
	entries, err := New(api, testTables).ScanLogs(context.Background(), "")
	if err != nil || len(entries) != 0 {
		t.Errorf("ScanLogs() = %v, %v", entries, err)
	}
}

func TestStore_ItemCount(t *testing.T) {
	t.Parallel()

	api := &mockAPI{describeTableFunc: func(_ context.Context, in *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
		if aws.ToString(in.TableName) == "missing" {
			return nil, errors.New("ResourceNotFoundException")
		}
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{ItemCount: aws.Int64(42)}}, nil
	}}
	s := New(api, testTables)

	n, err := s.ItemCount(context.Background(), "JotJotLogs")
	if err != nil || n != 42 {
		t.Errorf("ItemCount() = %d, %v; want 42, nil", n, err)
	}
	if _, err := s.ItemCount(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing table")
	}
}
