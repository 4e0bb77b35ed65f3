package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"pairing_server/models"
)

// CredentialService redeems and releases client credentials. Every
// check-then-set runs under one store-wide identification lock.
type CredentialService struct {
	Store   Store
	Metrics *Metrics

	mu sync.Mutex
}

// Redeem marks the client owning key as in use and returns it
func (s *CredentialService) Redeem(ctx context.Context, key string) (models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.Store.GetClientByKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.Metrics.redemption("not_found")
		return models.Client{}, ErrCredentialNotFound
	}
	if err != nil {
		s.Metrics.redemption("error")
		return models.Client{}, fmt.Errorf("failed to look up credential: %w", err)
	}

	if client.InUse {
		log.Printf("⛔ Credential of client %s is already in use", client.ClientID)
		s.Metrics.redemption("already_redeemed")
		return models.Client{}, ErrAlreadyRedeemed
	}

	if err := s.Store.SetClientInUse(ctx, client.ClientID, true); err != nil {
		s.Metrics.redemption("error")
		return models.Client{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	client.InUse = true

	log.Printf("🔑 Client %s identified", client.ClientID)
	s.Metrics.redemption("ok")
	return client, nil
}

// Release frees the credential of clientID. Releasing a free or unknown
// client is a no-op.
func (s *CredentialService) Release(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.Store.GetClient(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up client: %w", err)
	}
	if !client.InUse {
		return nil
	}

	if err := s.Store.SetClientInUse(ctx, clientID, false); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	log.Printf("🔓 Credential of client %s released", clientID)
	return nil
}
