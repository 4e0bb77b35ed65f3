package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pairing_server/models"
)

// MemoryStore keeps clients and pairings in process memory. Rows do not
// survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[string]models.Client
	order    []string
	keys     map[string]string
	pairings map[string]models.Pairing
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[string]models.Client),
		keys:     make(map[string]string),
		pairings: make(map[string]models.Pairing),
	}
}

func (s *MemoryStore) GetClient(ctx context.Context, clientID string) (models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return models.Client{}, ErrNotFound
	}
	return client, nil
}

func (s *MemoryStore) GetClientByKey(ctx context.Context, key string) (models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clientID, ok := s.keys[key]
	if !ok {
		return models.Client{}, ErrNotFound
	}
	return s.clients[clientID], nil
}

func (s *MemoryStore) SetClientInUse(ctx context.Context, clientID string, inUse bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	client.InUse = inUse
	s.clients[clientID] = client
	return nil
}

// CreateClients inserts all clients or none of them
func (s *MemoryStore) CreateClients(ctx context.Context, clients []models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(clients))
	for _, c := range clients {
		if _, exists := s.keys[c.Key]; exists || seen[c.Key] {
			return fmt.Errorf("key %s: %w", c.Key, ErrDuplicateKey)
		}
		if _, exists := s.clients[c.ClientID]; exists {
			return fmt.Errorf("client %s already exists", c.ClientID)
		}
		seen[c.Key] = true
	}
	for _, c := range clients {
		s.clients[c.ClientID] = c
		s.keys[c.Key] = c.ClientID
		s.order = append(s.order, c.ClientID)
	}
	return nil
}

func (s *MemoryStore) UpdateClientDetails(ctx context.Context, client models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[client.ClientID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = client.Name
	existing.Condition = client.Condition
	existing.PlayerCondition = client.PlayerCondition
	s.clients[client.ClientID] = existing
	return nil
}

func (s *MemoryStore) ListClients(ctx context.Context, sessionNr int) ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var clients []models.Client
	for _, id := range s.order {
		if c := s.clients[id]; c.SessionNr == sessionNr {
			clients = append(clients, c)
		}
	}
	return clients, nil
}

func (s *MemoryStore) MaxSessionNr(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := 0
	for _, c := range s.clients {
		if c.SessionNr > highest {
			highest = c.SessionNr
		}
	}
	return highest, nil
}

// ListPairings returns all live pairings, oldest announcement first
func (s *MemoryStore) ListPairings(ctx context.Context) ([]models.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairings := make([]models.Pairing, 0, len(s.pairings))
	for _, p := range s.pairings {
		pairings = append(pairings, p)
	}
	sort.Slice(pairings, func(i, j int) bool {
		return pairings[i].AnnouncedAt.Before(pairings[j].AnnouncedAt)
	})
	return pairings, nil
}

func (s *MemoryStore) CreatePairing(ctx context.Context, pairing models.Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pairings[pairing.OwnerID]; exists {
		return ErrPairingExists
	}
	s.pairings[pairing.OwnerID] = pairing
	return nil
}

func (s *MemoryStore) SavePairings(ctx context.Context, pairings ...models.Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range pairings {
		if _, exists := s.pairings[p.OwnerID]; !exists {
			return fmt.Errorf("pairing for %s: %w", p.OwnerID, ErrNotFound)
		}
	}
	for _, p := range pairings {
		s.pairings[p.OwnerID] = p
	}
	return nil
}

func (s *MemoryStore) RemovePairing(ctx context.Context, ownerID string, resets ...models.Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range resets {
		if _, exists := s.pairings[p.OwnerID]; !exists {
			return fmt.Errorf("pairing for %s: %w", p.OwnerID, ErrNotFound)
		}
	}
	delete(s.pairings, ownerID)
	for _, p := range resets {
		s.pairings[p.OwnerID] = p
	}
	return nil
}
