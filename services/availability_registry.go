package services

import (
	"pairing_server/models"
)

type registryEntry struct {
	client  models.Client
	pairing models.Pairing
}

// AvailabilityRegistry indexes live pairings by owner and keeps, per
// group, a FIFO queue of owners whose pairing is pending. It does no
// locking of its own: callers hold the pairing lock.
type AvailabilityRegistry struct {
	entries map[string]*registryEntry
	waiting map[models.GroupKey][]string
}

// NewAvailabilityRegistry returns an empty registry
func NewAvailabilityRegistry() *AvailabilityRegistry {
	return &AvailabilityRegistry{
		entries: make(map[string]*registryEntry),
		waiting: make(map[models.GroupKey][]string),
	}
}

// Add registers a new pairing for client. A pending pairing joins the tail
// of its group's queue.
func (r *AvailabilityRegistry) Add(client models.Client, pairing models.Pairing) {
	r.entries[pairing.OwnerID] = &registryEntry{client: client, pairing: pairing}
	if !pairing.Matched() {
		r.enqueue(client.Group(), pairing.OwnerID)
	}
}

// Get returns the live pairing owned by ownerID
func (r *AvailabilityRegistry) Get(ownerID string) (models.Pairing, bool) {
	entry, ok := r.entries[ownerID]
	if !ok {
		return models.Pairing{}, false
	}
	return entry.pairing, true
}

// Client returns the client record captured when ownerID announced
func (r *AvailabilityRegistry) Client(ownerID string) (models.Client, bool) {
	entry, ok := r.entries[ownerID]
	if !ok {
		return models.Client{}, false
	}
	return entry.client, true
}

// Put replaces an existing pairing. Going from pending to matched leaves the
// queue; going back to pending rejoins it at the tail.
func (r *AvailabilityRegistry) Put(pairing models.Pairing) {
	entry, ok := r.entries[pairing.OwnerID]
	if !ok {
		return
	}
	old := entry.pairing
	entry.pairing = pairing

	group := entry.client.Group()
	switch {
	case !old.Matched() && pairing.Matched():
		r.dequeue(group, pairing.OwnerID)
	case old.Matched() && !pairing.Matched():
		r.enqueue(group, pairing.OwnerID)
	}
}

// Remove drops the pairing owned by ownerID
func (r *AvailabilityRegistry) Remove(ownerID string) {
	entry, ok := r.entries[ownerID]
	if !ok {
		return
	}
	r.dequeue(entry.client.Group(), ownerID)
	delete(r.entries, ownerID)
}

// NextCandidate returns the longest-waiting pending owner in group other
// than exclude
func (r *AvailabilityRegistry) NextCandidate(group models.GroupKey, exclude string) (string, bool) {
	for _, ownerID := range r.waiting[group] {
		if ownerID != exclude {
			return ownerID, true
		}
	}
	return "", false
}

// Waiting returns the number of pending pairings across all groups
func (r *AvailabilityRegistry) Waiting() int {
	n := 0
	for _, queue := range r.waiting {
		n += len(queue)
	}
	return n
}

// Len returns the number of live pairings
func (r *AvailabilityRegistry) Len() int {
	return len(r.entries)
}

func (r *AvailabilityRegistry) enqueue(group models.GroupKey, ownerID string) {
	r.waiting[group] = append(r.waiting[group], ownerID)
}

func (r *AvailabilityRegistry) dequeue(group models.GroupKey, ownerID string) {
	queue := r.waiting[group]
	for i, id := range queue {
		if id == ownerID {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(r.waiting, group)
		return
	}
	r.waiting[group] = queue
}
