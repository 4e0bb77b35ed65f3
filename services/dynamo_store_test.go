package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pairing_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo answers the calls a test configures. Unconfigured calls panic
// through the nil embedded interface.
type fakeDynamo struct {
	DynamoAPI

	getItem   func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem   func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	update    func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	query     func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scan      func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	batch     func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	transact  func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
	callCount int
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.callCount++
	return f.getItem(in)
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.callCount++
	return f.putItem(in)
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.callCount++
	return f.update(in)
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.callCount++
	return f.query(in)
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.callCount++
	return f.scan(in)
}

func (f *fakeDynamo) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.callCount++
	return f.batch(in)
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.callCount++
	return f.transact(in)
}

func newFakeDynamoStore(fake *fakeDynamo) *DynamoStore {
	return NewDynamoStore(&DynamoService{Client: fake}, "", "")
}

func marshalItem(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func TestDynamoStoreDefaultTables(t *testing.T) {
	store := newFakeDynamoStore(&fakeDynamo{})
	assert.Equal(t, models.ClientsTable, store.ClientsTable)
	assert.Equal(t, models.PairingsTable, store.PairingsTable)
}

func TestDynamoStoreGetClientByKey(t *testing.T) {
	client := models.Client{ClientID: "c1", Key: "123456", Name: "Bob", SessionNr: 4, Pair: 2, PlayerCondition: 1}
	fake := &fakeDynamo{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.Equal(t, models.ClientsKeyIndex, aws.ToString(in.IndexName))
			assert.Equal(t, "key", in.ExpressionAttributeNames["#key"])
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				{"clientId": &types.AttributeValueMemberS{Value: "c1"}},
			}}, nil
		},
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.True(t, aws.ToBool(in.ConsistentRead))
			return &dynamodb.GetItemOutput{Item: marshalItem(t, client)}, nil
		},
	}
	store := newFakeDynamoStore(fake)

	got, err := store.GetClientByKey(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, client, got)
}

func TestDynamoStoreMissingRows(t *testing.T) {
	fake := &fakeDynamo{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{}, nil
		},
		update: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.Equal(t, "attribute_exists(#pk)", aws.ToString(in.ConditionExpression))
			assert.Equal(t, "clientId", in.ExpressionAttributeNames["#pk"])
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		},
	}
	store := newFakeDynamoStore(fake)
	ctx := context.Background()

	_, err := store.GetClientByKey(ctx, "000000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetClient(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.SetClientInUse(ctx, "ghost", true), ErrNotFound)
}

func TestDynamoStoreCreatePairingConflict(t *testing.T) {
	fake := &fakeDynamo{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			assert.Equal(t, models.PairingsTable, aws.ToString(in.TableName))
			assert.Equal(t, "attribute_not_exists(ownerId)", aws.ToString(in.ConditionExpression))
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		},
	}
	store := newFakeDynamoStore(fake)

	err := store.CreatePairing(context.Background(), models.Pairing{PairingID: "p1", OwnerID: "c1", Status: models.StatusPending})
	assert.ErrorIs(t, err, ErrPairingExists)
}

func TestDynamoStorePairingTransactions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := models.Pairing{PairingID: "pa", OwnerID: "a", PeerID: "b", Status: models.StatusMatched, Role: models.RoleA, AnnouncedAt: now, MatchedAt: now}
	b := models.Pairing{PairingID: "pb", OwnerID: "b", PeerID: "a", Status: models.StatusMatched, Role: models.RoleB, AnnouncedAt: now, MatchedAt: now}

	var captured []types.TransactWriteItem
	fake := &fakeDynamo{
		transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = in.TransactItems
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}
	store := newFakeDynamoStore(fake)
	ctx := context.Background()

	require.NoError(t, store.SavePairings(ctx, a, b))
	require.Len(t, captured, 2)
	for _, item := range captured {
		require.NotNil(t, item.Put)
		assert.Equal(t, "attribute_exists(ownerId)", aws.ToString(item.Put.ConditionExpression))
	}
	var saved models.Pairing
	require.NoError(t, attributevalue.UnmarshalMap(captured[1].Put.Item, &saved))
	assert.Equal(t, b.OwnerID, saved.OwnerID)
	assert.Equal(t, models.RoleB, saved.Role)
	assert.True(t, saved.MatchedAt.Equal(now))

	require.NoError(t, store.RemovePairing(ctx, "a", resetPairing(b)))
	require.Len(t, captured, 2)
	require.NotNil(t, captured[0].Put)
	require.NotNil(t, captured[1].Delete)
	assert.Equal(t, "a", captured[1].Delete.Key["ownerId"].(*types.AttributeValueMemberS).Value)

	fake.transact = func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		return nil, &types.TransactionCanceledException{Message: aws.String("condition")}
	}
	assert.ErrorIs(t, store.SavePairings(ctx, a, b), ErrConditionFailed)
}

func TestDynamoStoreScansPages(t *testing.T) {
	page := func(sessionNrs ...int) []map[string]types.AttributeValue {
		var items []map[string]types.AttributeValue
		for _, n := range sessionNrs {
			items = append(items, marshalItem(t, models.Client{ClientID: fmt.Sprintf("c%d", n), SessionNr: n}))
		}
		return items
	}
	fake := &fakeDynamo{
		scan: func(in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
			if in.ExclusiveStartKey == nil {
				return &dynamodb.ScanOutput{
					Items:            page(1, 3),
					LastEvaluatedKey: map[string]types.AttributeValue{"clientId": &types.AttributeValueMemberS{Value: "c3"}},
				}, nil
			}
			return &dynamodb.ScanOutput{Items: page(7, 2)}, nil
		},
	}
	store := newFakeDynamoStore(fake)

	highest, err := store.MaxSessionNr(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, highest)
	assert.Equal(t, 2, fake.callCount)
}

func TestDynamoStoreListClientsOrder(t *testing.T) {
	clients := []models.Client{
		{ClientID: "d", SessionNr: 5, Pair: 2, PlayerCondition: 2},
		{ClientID: "a", SessionNr: 5, Pair: 1, PlayerCondition: 1},
		{ClientID: "c", SessionNr: 5, Pair: 2, PlayerCondition: 1},
		{ClientID: "b", SessionNr: 5, Pair: 1, PlayerCondition: 2},
	}
	fake := &fakeDynamo{
		scan: func(in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
			assert.Equal(t, "sessionNr = :sessionNr", aws.ToString(in.FilterExpression))
			var items []map[string]types.AttributeValue
			for _, c := range clients {
				items = append(items, marshalItem(t, c))
			}
			return &dynamodb.ScanOutput{Items: items}, nil
		},
	}
	store := newFakeDynamoStore(fake)

	listed, err := store.ListClients(context.Background(), 5)
	require.NoError(t, err)
	var ids []string
	for _, c := range listed {
		ids = append(ids, c.ClientID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestBatchWriteItemsChunks(t *testing.T) {
	var sizes []int
	fake := &fakeDynamo{
		batch: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			sizes = append(sizes, len(in.RequestItems[models.ClientsTable]))
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	service := &DynamoService{Client: fake}

	requests := make([]types.WriteRequest, 30)
	for i := range requests {
		requests[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
			"clientId": &types.AttributeValueMemberS{Value: fmt.Sprint(i)},
		}}}
	}
	require.NoError(t, service.BatchWriteItems(context.Background(), models.ClientsTable, requests))
	assert.Equal(t, []int{25, 5}, sizes)
}

func TestDynamoStoreCreateClientsResubmitsUnprocessed(t *testing.T) {
	defer func(prev time.Duration) { batchRetryBackoff = prev }(batchRetryBackoff)
	batchRetryBackoff = time.Millisecond

	clients := []models.Client{
		{ClientID: "a", Key: "111111", SessionNr: 1, Pair: 1, PlayerCondition: 1},
		{ClientID: "b", Key: "222222", SessionNr: 1, Pair: 1, PlayerCondition: 2},
	}
	var submitted [][]types.WriteRequest
	fake := &fakeDynamo{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
		batch: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			requests := in.RequestItems[models.ClientsTable]
			submitted = append(submitted, requests)
			if len(submitted) == 1 {
				return &dynamodb.BatchWriteItemOutput{
					UnprocessedItems: map[string][]types.WriteRequest{models.ClientsTable: requests[1:]},
				}, nil
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	store := newFakeDynamoStore(fake)

	require.NoError(t, store.CreateClients(context.Background(), clients))
	require.Len(t, submitted, 2)
	assert.Len(t, submitted[0], 2)
	require.Len(t, submitted[1], 1)
	assert.Equal(t, "b", submitted[1][0].PutRequest.Item["clientId"].(*types.AttributeValueMemberS).Value)
}

func TestBatchWriteItemsGivesUpOnPersistentThrottling(t *testing.T) {
	defer func(prev time.Duration) { batchRetryBackoff = prev }(batchRetryBackoff)
	batchRetryBackoff = time.Millisecond

	calls := 0
	fake := &fakeDynamo{
		batch: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			calls++
			return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}, nil
		},
	}
	service := &DynamoService{Client: fake}
	requests := []types.WriteRequest{{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
		"clientId": &types.AttributeValueMemberS{Value: "a"},
	}}}}

	err := service.BatchWriteItems(context.Background(), models.ClientsTable, requests)
	assert.Error(t, err)
	assert.Equal(t, maxWriteAttempts, calls)
}
