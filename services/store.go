package services

import (
	"context"

	"pairing_server/models"
)

// Store is the persistence collaborator for clients and live pairings.
// SavePairings and RemovePairing must apply all of their rows as one unit.
type Store interface {
	GetClient(ctx context.Context, clientID string) (models.Client, error)
	GetClientByKey(ctx context.Context, key string) (models.Client, error)
	SetClientInUse(ctx context.Context, clientID string, inUse bool) error
	CreateClients(ctx context.Context, clients []models.Client) error
	// UpdateClientDetails writes only Name, Condition and PlayerCondition.
	// Key and InUse belong to provisioning and the credential service.
	UpdateClientDetails(ctx context.Context, client models.Client) error
	ListClients(ctx context.Context, sessionNr int) ([]models.Client, error)
	MaxSessionNr(ctx context.Context) (int, error)

	ListPairings(ctx context.Context) ([]models.Pairing, error)
	CreatePairing(ctx context.Context, pairing models.Pairing) error
	SavePairings(ctx context.Context, pairings ...models.Pairing) error
	RemovePairing(ctx context.Context, ownerID string, resets ...models.Pairing) error
}
