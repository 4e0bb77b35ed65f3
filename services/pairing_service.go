package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"pairing_server/models"

	"github.com/google/uuid"
)

// DefaultRetryInterval is the pause between two matching attempts of a client
const DefaultRetryInterval = time.Second

// PairingStatus is what a polling client sees about its pairing
type PairingStatus struct {
	State     string `json:"state"`
	PairingID string `json:"pairingId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	PeerID    string `json:"peerId,omitempty"`
	PeerName  string `json:"peerName,omitempty"`
	Role      string `json:"role,omitempty"`
}

type matcher struct {
	cancel context.CancelFunc
}

// PairingService announces clients, matches them inside their group and
// tears pairings down. The registry, the store's pairing rows and the set
// of running matchers are only touched while holding the pairing lock.
type PairingService struct {
	Store         Store
	Credentials   *CredentialService
	Metrics       *Metrics
	RetryInterval time.Duration

	mu       sync.Mutex
	registry *AvailabilityRegistry
	matchers map[string]*matcher
	closed   bool

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewPairingService returns a service with an empty registry. Call Load to
// pick up pairings persisted by a previous process.
func NewPairingService(store Store, credentials *CredentialService, metrics *Metrics, retryInterval time.Duration) *PairingService {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &PairingService{
		Store:         store,
		Credentials:   credentials,
		Metrics:       metrics,
		RetryInterval: retryInterval,
		registry:      NewAvailabilityRegistry(),
		matchers:      make(map[string]*matcher),
		baseCtx:       baseCtx,
		stop:          stop,
		now:           time.Now,
	}
}

// Load fills the registry from the store and resumes a matching loop for
// every pending pairing. Matched pairings whose peer is gone or does not
// point back are reset to pending.
func (s *PairingService) Load(ctx context.Context) error {
	pairings, err := s.Store.ListPairings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pairings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byOwner := make(map[string]models.Pairing, len(pairings))
	for _, p := range pairings {
		byOwner[p.OwnerID] = p
	}

	for _, p := range pairings {
		client, err := s.Store.GetClient(ctx, p.OwnerID)
		if err != nil {
			log.Printf("⚠️ Skipping pairing %s: owner %s: %v", p.PairingID, p.OwnerID, err)
			continue
		}
		if p.Matched() {
			peer, ok := byOwner[p.PeerID]
			if !ok || peer.PeerID != p.OwnerID {
				log.Printf("🩹 Pairing %s references missing peer %s, resetting", p.PairingID, p.PeerID)
				p = resetPairing(p)
				if err := s.Store.SavePairings(ctx, p); err != nil {
					return fmt.Errorf("failed to reset pairing %s: %w", p.PairingID, err)
				}
			}
		}
		s.registry.Add(client, p)
	}

	for _, p := range pairings {
		if current, ok := s.registry.Get(p.OwnerID); ok && !current.Matched() {
			s.startMatcherLocked(p.OwnerID)
		}
	}
	s.Metrics.setWaiting(s.registry.Waiting())
	log.Printf("✅ Loaded %d pairing(s), %d waiting", s.registry.Len(), s.registry.Waiting())
	return nil
}

// Announce makes clientID available for pairing and returns its pairing
// id without waiting for a match. A client that already holds a live
// pairing gets that pairing back.
func (s *PairingService) Announce(ctx context.Context, clientID string) (string, error) {
	client, err := s.Store.GetClient(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return "", ErrClientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up client: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.registry.Get(clientID); ok {
		if !existing.Matched() {
			s.startMatcherLocked(clientID)
		}
		return existing.PairingID, nil
	}

	pairing := models.Pairing{
		PairingID:   uuid.NewString(),
		OwnerID:     clientID,
		Status:      models.StatusPending,
		AnnouncedAt: s.now().UTC(),
	}
	if err := s.Store.CreatePairing(ctx, pairing); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.registry.Add(client, pairing)
	s.Metrics.setWaiting(s.registry.Waiting())
	s.startMatcherLocked(clientID)

	log.Printf("📣 Client %s added to available clients (session %d, pair %d)", clientID, client.SessionNr, client.Pair)
	return pairing.PairingID, nil
}

// Status reports whether clientID is unpaired, pending or matched. The
// session id of a matched pair is the role B side's pairing id on both
// sides.
func (s *PairingService) Status(ctx context.Context, clientID string) (PairingStatus, error) {
	s.mu.Lock()
	status, ok := s.statusLocked(clientID)
	s.mu.Unlock()
	if ok {
		return status, nil
	}

	if _, err := s.Store.GetClient(ctx, clientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return PairingStatus{}, ErrClientNotFound
		}
		return PairingStatus{}, fmt.Errorf("failed to look up client: %w", err)
	}
	return PairingStatus{State: models.StateUnpaired}, nil
}

func (s *PairingService) statusLocked(clientID string) (PairingStatus, bool) {
	own, ok := s.registry.Get(clientID)
	if !ok {
		return PairingStatus{}, false
	}
	if !own.Matched() {
		return PairingStatus{State: models.StatePending, PairingID: own.PairingID}, true
	}

	status := PairingStatus{
		State:     models.StateMatched,
		PairingID: own.PairingID,
		PeerID:    own.PeerID,
		Role:      own.Role,
		SessionID: own.PairingID,
	}
	if peer, ok := s.registry.Get(own.PeerID); ok && own.Role == models.RoleA {
		status.SessionID = peer.PairingID
	}
	if peerClient, ok := s.registry.Client(own.PeerID); ok {
		status.PeerName = peerClient.Name
	}
	return status, true
}

// Disconnect removes the client's pairing, puts a matched peer back to
// pending and then releases the client's credential. The credential stays
// redeemed while the pairing could not be removed. Disconnecting a client
// without a pairing, or an unknown client, succeeds.
func (s *PairingService) Disconnect(ctx context.Context, clientID string) error {
	if err := s.leave(ctx, clientID); err != nil {
		return err
	}
	if s.Credentials != nil {
		return s.Credentials.Release(ctx, clientID)
	}
	return nil
}

func (s *PairingService) leave(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	own, ok := s.registry.Get(clientID)
	if !ok {
		s.Metrics.disconnect(models.StateUnpaired)
		return nil
	}

	var resets []models.Pairing
	if own.Matched() {
		if peer, ok := s.registry.Get(own.PeerID); ok && peer.PeerID == clientID {
			resets = append(resets, resetPairing(peer))
		}
	}

	if err := s.Store.RemovePairing(ctx, clientID, resets...); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.stopMatcherLocked(clientID)
	s.registry.Remove(clientID)
	for _, reset := range resets {
		s.registry.Put(reset)
		s.startMatcherLocked(reset.OwnerID)
		log.Printf("↩️ Client %s is available again after %s left", reset.OwnerID, clientID)
	}
	s.Metrics.setWaiting(s.registry.Waiting())

	if own.Matched() {
		s.Metrics.disconnect(models.StateMatched)
	} else {
		s.Metrics.disconnect(models.StatePending)
	}
	log.Printf("👋 Client %s disconnected", clientID)
	return nil
}

// Pairings returns a copy of every live pairing, oldest announcement first
func (s *PairingService) Pairings() []models.Pairing {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairings := make([]models.Pairing, 0, s.registry.Len())
	for _, entry := range s.registry.entries {
		pairings = append(pairings, entry.pairing)
	}
	sort.Slice(pairings, func(i, j int) bool {
		return pairings[i].AnnouncedAt.Before(pairings[j].AnnouncedAt)
	})
	return pairings
}

// Close stops every matching loop and waits for them to return
func (s *PairingService) Close() {
	s.mu.Lock()
	s.closed = true
	s.stop()
	s.mu.Unlock()

	s.wg.Wait()
}

// startMatcherLocked launches the matching loop of ownerID unless one is
// already running
func (s *PairingService) startMatcherLocked(ownerID string) {
	if s.closed {
		return
	}
	if _, running := s.matchers[ownerID]; running {
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	m := &matcher{cancel: cancel}
	s.matchers[ownerID] = m
	s.wg.Add(1)
	s.Metrics.matcherStarted()
	go s.runMatcher(ctx, ownerID, m)
}

func (s *PairingService) stopMatcherLocked(ownerID string) {
	if m, ok := s.matchers[ownerID]; ok {
		m.cancel()
		delete(s.matchers, ownerID)
	}
}

// runMatcher retries attemptMatch every RetryInterval until the client is
// matched, its pairing is gone or the loop is cancelled
func (s *PairingService) runMatcher(ctx context.Context, ownerID string, m *matcher) {
	defer s.wg.Done()
	defer s.Metrics.matcherStopped()
	defer func() {
		s.mu.Lock()
		if s.matchers[ownerID] == m {
			delete(s.matchers, ownerID)
		}
		s.mu.Unlock()
		m.cancel()
	}()

	timer := time.NewTimer(s.RetryInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if s.attemptMatch(ctx, ownerID) {
			return
		}

		timer.Reset(s.RetryInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// attemptMatch runs one matching pass for ownerID under the pairing lock.
// It returns true when the loop should stop.
func (s *PairingService) attemptMatch(ctx context.Context, ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	own, ok := s.registry.Get(ownerID)
	if !ok || own.Matched() {
		s.Metrics.matchAttempt("done")
		return true
	}

	client, _ := s.registry.Client(ownerID)
	candidateID, found := s.registry.NextCandidate(client.Group(), ownerID)
	if !found {
		s.Metrics.matchAttempt("no_candidate")
		return false
	}
	candidate, _ := s.registry.Get(candidateID)

	now := s.now().UTC()
	initiator := own
	initiator.PeerID = candidateID
	initiator.Status = models.StatusMatched
	initiator.Role = models.RoleA
	initiator.MatchedAt = now

	discovered := candidate
	discovered.PeerID = ownerID
	discovered.Status = models.StatusMatched
	discovered.Role = models.RoleB
	discovered.MatchedAt = now

	// registry is only updated once the store accepted both rows
	if err := s.Store.SavePairings(ctx, initiator, discovered); err != nil {
		log.Printf("❌ Failed to commit match %s <-> %s, retrying: %v", ownerID, candidateID, err)
		s.Metrics.matchAttempt("commit_failed")
		return false
	}
	s.registry.Put(initiator)
	s.registry.Put(discovered)

	s.Metrics.matchAttempt("matched")
	s.Metrics.matched()
	s.Metrics.setWaiting(s.registry.Waiting())
	log.Printf("🤝 Connected %s with %s", ownerID, candidateID)
	return true
}

func resetPairing(p models.Pairing) models.Pairing {
	p.PeerID = ""
	p.Role = ""
	p.Status = models.StatusPending
	p.MatchedAt = time.Time{}
	return p
}
