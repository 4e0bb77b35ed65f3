package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"sync"
	"time"

	"pairing_server/models"

	"github.com/google/uuid"
)

const (
	maxKeyAttempts   = 50
	maxBatchAttempts = 3
	keySpace         = 999999
)

// Export kinds accepted by Export and PublishExport
const (
	ExportRosterCSV  = "csv"
	ExportAllocation = "allocation"
)

// ClientUpdate carries the administratively editable fields of a client.
// Nil fields are left untouched.
type ClientUpdate struct {
	ClientID        string  `json:"clientId" validate:"required"`
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=40"`
	Condition       *int    `json:"condition,omitempty" validate:"omitempty,gte=0"`
	PlayerCondition *int    `json:"playerCondition,omitempty" validate:"omitempty,gte=0"`
}

// RosterService provisions sessions of clients and exports their rosters
type RosterService struct {
	Store   Store
	Exports ExportPublisher

	// NewKey generates one credential; defaults to a random 6-digit key
	NewKey func() (string, error)

	// mu serializes session provisioning so session numbers stay unique
	mu sync.Mutex
}

func randomKey() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(keySpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+1), nil
}

// CreateSession provisions numberPlayers clients in a new session. Clients
// are laid out two per pair slot; the second of each pair has player
// condition 2.
func (s *RosterService) CreateSession(ctx context.Context, numberPlayers int) (int, []models.Client, error) {
	if numberPlayers < 2 || numberPlayers%2 != 0 {
		return 0, nil, fmt.Errorf("%w: number of players must be even and at least 2, got %d", ErrInvalidRoster, numberPlayers)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.Store.MaxSessionNr(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read session numbers: %w", err)
	}
	sessionNr := last + 1

	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		clients, err := s.buildSession(ctx, sessionNr, numberPlayers)
		if err != nil {
			return 0, nil, err
		}
		err = s.Store.CreateClients(ctx, clients)
		if errors.Is(err, ErrDuplicateKey) {
			log.Printf("⚠️ Key collision while creating session %d, attempt %d", sessionNr, attempt)
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create clients: %w", err)
		}
		log.Printf("✅ Created session %d with %d players", sessionNr, numberPlayers)
		return sessionNr, clients, nil
	}
	return 0, nil, fmt.Errorf("failed to create session %d: %w", sessionNr, ErrDuplicateKey)
}

func (s *RosterService) buildSession(ctx context.Context, sessionNr, numberPlayers int) ([]models.Client, error) {
	newKey := s.NewKey
	if newKey == nil {
		newKey = randomKey
	}

	used := make(map[string]bool, numberPlayers)
	clients := make([]models.Client, 0, numberPlayers)
	for i := 0; i < numberPlayers; i++ {
		key, err := s.freshKey(ctx, newKey, used)
		if err != nil {
			return nil, err
		}
		used[key] = true
		clients = append(clients, models.Client{
			ClientID:        uuid.NewString(),
			Key:             key,
			Name:            key,
			SessionNr:       sessionNr,
			Pair:            i/2 + 1,
			PlayerCondition: i%2 + 1,
		})
	}
	return clients, nil
}

func (s *RosterService) freshKey(ctx context.Context, newKey func() (string, error), used map[string]bool) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := newKey()
		if err != nil {
			return "", fmt.Errorf("failed to generate key: %w", err)
		}
		if used[key] {
			continue
		}
		_, err = s.Store.GetClientByKey(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return key, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check key: %w", err)
		}
	}
	return "", fmt.Errorf("no free key after %d attempts: %w", maxKeyAttempts, ErrDuplicateKey)
}

// ListSession returns the clients of a session in provisioning order
func (s *RosterService) ListSession(ctx context.Context, sessionNr int) ([]models.Client, error) {
	return s.Store.ListClients(ctx, sessionNr)
}

// UpdateClients applies every update; it stops at the first failure. Only
// the editable fields are written back, so a concurrent redemption is kept.
func (s *RosterService) UpdateClients(ctx context.Context, updates []ClientUpdate) error {
	for _, u := range updates {
		client, err := s.Store.GetClient(ctx, u.ClientID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("client %s: %w", u.ClientID, ErrClientNotFound)
		}
		if err != nil {
			return err
		}
		if u.Name != nil {
			client.Name = *u.Name
		}
		if u.Condition != nil {
			client.Condition = *u.Condition
		}
		if u.PlayerCondition != nil {
			client.PlayerCondition = *u.PlayerCondition
		}
		if err := s.Store.UpdateClientDetails(ctx, client); err != nil {
			return fmt.Errorf("failed to update client %s: %w", u.ClientID, err)
		}
	}
	return nil
}

// Export renders the roster of a session. kind is ExportRosterCSV for the
// semicolon separated key sheet or ExportAllocation for the tab separated
// allocation file.
func (s *RosterService) Export(ctx context.Context, sessionNr int, kind string) ([]byte, error) {
	clients, err := s.Store.ListClients(ctx, sessionNr)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("%w: session %d has no players", ErrInvalidRoster, sessionNr)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	switch kind {
	case ExportRosterCSV:
		w.Comma = ';'
		w.Write([]string{"session nr", "key", "name", "pair", "used"})
		for _, c := range clients {
			w.Write([]string{
				strconv.Itoa(c.SessionNr), c.Key, c.Name, strconv.Itoa(c.Pair), strconv.FormatBool(c.InUse),
			})
		}
	case ExportAllocation:
		w.Comma = '\t'
		w.Write([]string{"Allocation", "ID", "Team", "Condi", "PlayerCondi"})
		for _, c := range clients {
			w.Write([]string{
				"Allocation", c.ClientID, strconv.Itoa(c.Pair), strconv.Itoa(c.Condition), strconv.Itoa(c.PlayerCondition),
			})
		}
	default:
		return nil, fmt.Errorf("%w: unknown export %q", ErrInvalidRoster, kind)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	return buf.Bytes(), nil
}

// PublishExport renders an export and uploads it, returning a read URL
func (s *RosterService) PublishExport(ctx context.Context, sessionNr int, kind string) (string, error) {
	if s.Exports == nil {
		return "", ErrExportUnavailable
	}
	body, err := s.Export(ctx, sessionNr, kind)
	if err != nil {
		return "", err
	}

	contentType, name := "text/csv", fmt.Sprintf("session_%d.csv", sessionNr)
	if kind == ExportAllocation {
		contentType, name = "text/plain", fmt.Sprintf("session_%d_allocation.txt", sessionNr)
	}
	key := "rosters/" + time.Now().UTC().Format("20060102150405") + "-" + name
	return s.Exports.Publish(ctx, key, contentType, body)
}
