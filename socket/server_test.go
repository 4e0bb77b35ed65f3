package socket

import (
	"context"
	"fmt"
	"testing"

	"pairing_server/models"
	"pairing_server/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	identifyErr error
	identified  []string
	status      services.PairingStatus
	left        []string
}

func (f *fakeCoordinator) Identify(ctx context.Context, key string) (string, error) {
	f.identified = append(f.identified, key)
	if f.identifyErr != nil {
		return "", f.identifyErr
	}
	return "client-" + key, nil
}

func (f *fakeCoordinator) Announce(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", services.ErrClientNotFound
	}
	return "pairing-" + clientID, nil
}

func (f *fakeCoordinator) Status(ctx context.Context, clientID string) (services.PairingStatus, error) {
	return f.status, nil
}

func (f *fakeCoordinator) Disconnect(ctx context.Context, clientID string) error {
	f.left = append(f.left, clientID)
	return nil
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: services.ErrCredentialNotFound, want: "not_found"},
		{err: services.ErrAlreadyRedeemed, want: "already_redeemed"},
		{err: services.ErrClientNotFound, want: "client_not_found"},
		{err: fmt.Errorf("%w: disk full", services.ErrPersistence), want: "unavailable"},
		{err: fmt.Errorf("boom"), want: "server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	coordinator := &fakeCoordinator{status: services.PairingStatus{
		State:     models.StateMatched,
		PairingID: "p1",
		SessionID: "p2",
		PeerID:    "b",
		PeerName:  "Bob",
		Role:      models.RoleA,
	}}
	h := Handlers{Coordinator: coordinator}

	ack, clientID := h.Identify(ctx, "", "123456")
	assert.Equal(t, "client-123456", clientID)
	assert.Equal(t, "client-123456", ack["clientId"])

	assert.Equal(t, "pairing-a", h.Announce(ctx, "a")["pairingId"])
	assert.Equal(t, "client_not_found", h.Announce(ctx, "")["error"])

	status := h.Status(ctx, "a")
	assert.Equal(t, models.StateMatched, status["state"])
	assert.Equal(t, "p2", status["sessionId"])
	assert.Equal(t, "Bob", status["peerName"])

	assert.Equal(t, "Client disconnected", h.Leave(ctx, "a")["message"])
	assert.Equal(t, []string{"a"}, coordinator.left)

	coordinator.identifyErr = services.ErrAlreadyRedeemed
	ack, clientID = h.Identify(ctx, "", "123456")
	assert.Empty(t, clientID)
	assert.Equal(t, "already_redeemed", ack["error"])
}

func TestIdentifyRefusesBoundConnection(t *testing.T) {
	ctx := context.Background()
	coordinator := &fakeCoordinator{}
	h := Handlers{Coordinator: coordinator}

	_, first := h.Identify(ctx, "", "111111")
	require.Equal(t, "client-111111", first)

	ack, clientID := h.Identify(ctx, first, "222222")
	assert.Empty(t, clientID, "the first binding is kept")
	assert.Equal(t, "already_identified", ack["error"])
	assert.Equal(t, first, ack["clientId"])
	assert.Equal(t, []string{"111111"}, coordinator.identified, "second key is never redeemed")

	h.Leave(ctx, first)
	_, clientID = h.Identify(ctx, "", "222222")
	assert.Equal(t, "client-222222", clientID)
}
