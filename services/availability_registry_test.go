package services

import (
	"testing"

	"pairing_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryClient(id string, sessionNr, pair int) models.Client {
	return models.Client{ClientID: id, Key: id, SessionNr: sessionNr, Pair: pair}
}

func TestAvailabilityRegistryCandidateOrder(t *testing.T) {
	r := NewAvailabilityRegistry()
	group := models.GroupKey{SessionNr: 1, Pair: 1}

	for _, id := range []string{"a", "b", "c"} {
		r.Add(registryClient(id, 1, 1), models.Pairing{OwnerID: id, Status: models.StatusPending})
	}
	r.Add(registryClient("other", 1, 2), models.Pairing{OwnerID: "other", Status: models.StatusPending})

	tests := []struct {
		name    string
		exclude string
		want    string
	}{
		{name: "oldest waiter for a newcomer", exclude: "c", want: "a"},
		{name: "skips the caller", exclude: "a", want: "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.NextCandidate(group, tt.exclude)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := r.NextCandidate(models.GroupKey{SessionNr: 1, Pair: 2}, "other")
	assert.False(t, ok, "a lone waiter has no candidate")
	assert.Equal(t, 4, r.Waiting())
}

func TestAvailabilityRegistryMatchedLeavesQueue(t *testing.T) {
	r := NewAvailabilityRegistry()
	group := models.GroupKey{SessionNr: 1, Pair: 1}
	for _, id := range []string{"a", "b", "c"} {
		r.Add(registryClient(id, 1, 1), models.Pairing{OwnerID: id, Status: models.StatusPending})
	}

	r.Put(models.Pairing{OwnerID: "a", PeerID: "b", Status: models.StatusMatched, Role: models.RoleA})
	r.Put(models.Pairing{OwnerID: "b", PeerID: "a", Status: models.StatusMatched, Role: models.RoleB})
	assert.Equal(t, 1, r.Waiting())

	got, ok := r.NextCandidate(group, "x")
	require.True(t, ok)
	assert.Equal(t, "c", got)

	// back to pending rejoins at the tail
	r.Put(models.Pairing{OwnerID: "b", Status: models.StatusPending})
	got, ok = r.NextCandidate(group, "x")
	require.True(t, ok)
	assert.Equal(t, "c", got)
	got, ok = r.NextCandidate(group, "c")
	require.True(t, ok)
	assert.Equal(t, "b", got)

	p, ok := r.Get("b")
	require.True(t, ok)
	assert.False(t, p.Matched())
}

func TestAvailabilityRegistryRemove(t *testing.T) {
	r := NewAvailabilityRegistry()
	group := models.GroupKey{SessionNr: 3, Pair: 1}
	r.Add(registryClient("a", 3, 1), models.Pairing{OwnerID: "a", Status: models.StatusPending})
	r.Add(registryClient("b", 3, 1), models.Pairing{OwnerID: "b", Status: models.StatusPending})

	r.Remove("a")
	r.Remove("unknown")

	_, ok := r.Get("a")
	assert.False(t, ok)
	_, ok = r.NextCandidate(group, "b")
	assert.False(t, ok, "removed owner is never offered")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, r.Waiting())

	r.Put(models.Pairing{OwnerID: "a", Status: models.StatusPending})
	assert.Equal(t, 1, r.Len(), "Put does not resurrect removed owners")
}
