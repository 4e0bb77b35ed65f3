package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"

	"pairing_server/models"
	"pairing_server/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore keeps clients and pairings in two DynamoDB tables. Pairing
// units are written with TransactWriteItems so both sides land together.
type DynamoStore struct {
	Dynamo        *DynamoService
	ClientsTable  string
	PairingsTable string
}

// NewDynamoStore returns a store on the given tables, falling back to the
// default table names when empty
func NewDynamoStore(dynamo *DynamoService, clientsTable, pairingsTable string) *DynamoStore {
	if clientsTable == "" {
		clientsTable = models.ClientsTable
	}
	if pairingsTable == "" {
		pairingsTable = models.PairingsTable
	}
	return &DynamoStore{Dynamo: dynamo, ClientsTable: clientsTable, PairingsTable: pairingsTable}
}

func clientKey(clientID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"clientId": &types.AttributeValueMemberS{Value: clientID},
	}
}

func pairingKey(ownerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ownerId": &types.AttributeValueMemberS{Value: ownerID},
	}
}

func (s *DynamoStore) GetClient(ctx context.Context, clientID string) (models.Client, error) {
	item, err := s.Dynamo.GetItem(ctx, s.ClientsTable, clientKey(clientID))
	if err != nil {
		return models.Client{}, err
	}
	var client models.Client
	if err := attributevalue.UnmarshalMap(item, &client); err != nil {
		return models.Client{}, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return client, nil
}

func (s *DynamoStore) GetClientByKey(ctx context.Context, key string) (models.Client, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, s.ClientsTable, models.ClientsKeyIndex,
		"#key = :key",
		map[string]types.AttributeValue{":key": &types.AttributeValueMemberS{Value: key}},
		map[string]string{"#key": "key"},
		1,
	)
	if err != nil {
		return models.Client{}, err
	}
	if len(items) == 0 {
		return models.Client{}, ErrNotFound
	}
	// the index only projects keys reliably, so re-read the base item
	clientID := utils.ExtractString(items[0], "clientId")
	if clientID == "" {
		return models.Client{}, ErrNotFound
	}
	return s.GetClient(ctx, clientID)
}

func (s *DynamoStore) SetClientInUse(ctx context.Context, clientID string, inUse bool) error {
	return s.Dynamo.UpdateItem(ctx, s.ClientsTable,
		"SET #inUse = :inUse",
		clientKey(clientID),
		map[string]types.AttributeValue{":inUse": &types.AttributeValueMemberBOOL{Value: inUse}},
		map[string]string{"#inUse": "inUse"},
	)
}

// CreateClients checks every key against the key index before writing.
// BatchWriteItem is not transactional, so keys are checked up front.
func (s *DynamoStore) CreateClients(ctx context.Context, clients []models.Client) error {
	seen := make(map[string]bool, len(clients))
	requests := make([]types.WriteRequest, 0, len(clients))
	for _, c := range clients {
		if seen[c.Key] {
			return fmt.Errorf("key %s: %w", c.Key, ErrDuplicateKey)
		}
		seen[c.Key] = true
		if _, err := s.GetClientByKey(ctx, c.Key); err == nil {
			return fmt.Errorf("key %s: %w", c.Key, ErrDuplicateKey)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		item, err := attributevalue.MarshalMap(c)
		if err != nil {
			return fmt.Errorf("failed to marshal client: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.Dynamo.BatchWriteItems(ctx, s.ClientsTable, requests)
}

func (s *DynamoStore) UpdateClientDetails(ctx context.Context, client models.Client) error {
	return s.Dynamo.UpdateItem(ctx, s.ClientsTable,
		"SET #name = :name, #condition = :condition, #playerCondition = :playerCondition",
		clientKey(client.ClientID),
		map[string]types.AttributeValue{
			":name":            &types.AttributeValueMemberS{Value: client.Name},
			":condition":       &types.AttributeValueMemberN{Value: strconv.Itoa(client.Condition)},
			":playerCondition": &types.AttributeValueMemberN{Value: strconv.Itoa(client.PlayerCondition)},
		},
		map[string]string{"#name": "name", "#condition": "condition", "#playerCondition": "playerCondition"},
	)
}

func (s *DynamoStore) ListClients(ctx context.Context, sessionNr int) ([]models.Client, error) {
	items, err := s.Dynamo.ScanAll(ctx, s.ClientsTable,
		"sessionNr = :sessionNr",
		map[string]types.AttributeValue{":sessionNr": &types.AttributeValueMemberN{Value: fmt.Sprint(sessionNr)}},
		nil,
	)
	if err != nil {
		return nil, err
	}
	var clients []models.Client
	if err := attributevalue.UnmarshalListOfMaps(items, &clients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clients: %w", err)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Pair != clients[j].Pair {
			return clients[i].Pair < clients[j].Pair
		}
		return clients[i].PlayerCondition < clients[j].PlayerCondition
	})
	return clients, nil
}

func (s *DynamoStore) MaxSessionNr(ctx context.Context) (int, error) {
	items, err := s.Dynamo.ScanAll(ctx, s.ClientsTable, "", nil, nil)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, item := range items {
		if n := utils.ExtractInt(item, "sessionNr"); n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (s *DynamoStore) ListPairings(ctx context.Context) ([]models.Pairing, error) {
	items, err := s.Dynamo.ScanAll(ctx, s.PairingsTable, "", nil, nil)
	if err != nil {
		return nil, err
	}
	var pairings []models.Pairing
	if err := attributevalue.UnmarshalListOfMaps(items, &pairings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pairings: %w", err)
	}
	sort.Slice(pairings, func(i, j int) bool {
		return pairings[i].AnnouncedAt.Before(pairings[j].AnnouncedAt)
	})
	return pairings, nil
}

func (s *DynamoStore) CreatePairing(ctx context.Context, pairing models.Pairing) error {
	err := s.Dynamo.PutItem(ctx, s.PairingsTable, pairing, "attribute_not_exists(ownerId)")
	if errors.Is(err, ErrConditionFailed) {
		return ErrPairingExists
	}
	return err
}

func (s *DynamoStore) SavePairings(ctx context.Context, pairings ...models.Pairing) error {
	items, err := s.pairingPuts(pairings)
	if err != nil {
		return err
	}
	return s.Dynamo.TransactWrite(ctx, items)
}

func (s *DynamoStore) RemovePairing(ctx context.Context, ownerID string, resets ...models.Pairing) error {
	items, err := s.pairingPuts(resets)
	if err != nil {
		return err
	}
	items = append(items, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(s.PairingsTable),
			Key:       pairingKey(ownerID),
		},
	})
	log.Printf("🗑️ Removing pairing of %s with %d peer reset(s)", ownerID, len(resets))
	return s.Dynamo.TransactWrite(ctx, items)
}

// pairingPuts builds conditional puts that only overwrite live pairings
func (s *DynamoStore) pairingPuts(pairings []models.Pairing) ([]types.TransactWriteItem, error) {
	items := make([]types.TransactWriteItem, 0, len(pairings)+1)
	for _, p := range pairings {
		item, err := attributevalue.MarshalMap(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal pairing: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.PairingsTable),
				Item:                item,
				ConditionExpression: aws.String("attribute_exists(ownerId)"),
			},
		})
	}
	return items, nil
}
