package socket

import (
	"context"
	"errors"
	"log"

	"pairing_server/services"

	socketio "github.com/googollee/go-socket.io"
)

// Coordinator is what the socket transport needs from the pairing services
type Coordinator interface {
	Identify(ctx context.Context, key string) (string, error)
	Announce(ctx context.Context, clientID string) (string, error)
	Status(ctx context.Context, clientID string) (services.PairingStatus, error)
	Disconnect(ctx context.Context, clientID string) error
}

// ServiceCoordinator adapts the credential and pairing services to Coordinator
type ServiceCoordinator struct {
	Credentials *services.CredentialService
	Pairings    *services.PairingService
}

func (c ServiceCoordinator) Identify(ctx context.Context, key string) (string, error) {
	client, err := c.Credentials.Redeem(ctx, key)
	if err != nil {
		return "", err
	}
	return client.ClientID, nil
}

func (c ServiceCoordinator) Announce(ctx context.Context, clientID string) (string, error) {
	return c.Pairings.Announce(ctx, clientID)
}

func (c ServiceCoordinator) Status(ctx context.Context, clientID string) (services.PairingStatus, error) {
	return c.Pairings.Status(ctx, clientID)
}

func (c ServiceCoordinator) Disconnect(ctx context.Context, clientID string) error {
	return c.Pairings.Disconnect(ctx, clientID)
}

// Handlers answers socket events. Each event is acknowledged with a map
// carrying either the result or an "error" code.
type Handlers struct {
	Coordinator Coordinator
}

// ErrorCode maps a coordinator error onto the code sent back to sockets
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrCredentialNotFound):
		return "not_found"
	case errors.Is(err, services.ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, services.ErrClientNotFound):
		return "client_not_found"
	case errors.Is(err, services.ErrPersistence):
		return "unavailable"
	default:
		return "server_error"
	}
}

func errorAck(err error) map[string]interface{} {
	return map[string]interface{}{"error": ErrorCode(err)}
}

// Identify redeems key and returns the client id. Returns the id to bind to
// the connection, empty on failure. A connection already bound to a client
// must leave before it identifies again.
func (h Handlers) Identify(ctx context.Context, bound, key string) (map[string]interface{}, string) {
	if bound != "" {
		return map[string]interface{}{"error": "already_identified", "clientId": bound}, ""
	}
	clientID, err := h.Coordinator.Identify(ctx, key)
	if err != nil {
		return errorAck(err), ""
	}
	return map[string]interface{}{"clientId": clientID}, clientID
}

func (h Handlers) Announce(ctx context.Context, clientID string) map[string]interface{} {
	pairingID, err := h.Coordinator.Announce(ctx, clientID)
	if err != nil {
		return errorAck(err)
	}
	return map[string]interface{}{"pairingId": pairingID}
}

func (h Handlers) Status(ctx context.Context, clientID string) map[string]interface{} {
	status, err := h.Coordinator.Status(ctx, clientID)
	if err != nil {
		return errorAck(err)
	}
	return map[string]interface{}{
		"state":     status.State,
		"pairingId": status.PairingID,
		"sessionId": status.SessionID,
		"peerId":    status.PeerID,
		"peerName":  status.PeerName,
		"role":      status.Role,
	}
}

func (h Handlers) Leave(ctx context.Context, clientID string) map[string]interface{} {
	if err := h.Coordinator.Disconnect(ctx, clientID); err != nil {
		return errorAck(err)
	}
	return map[string]interface{}{"message": "Client disconnected"}
}

// boundClient returns clientID, or the client identified on conn when empty
func boundClient(c socketio.Conn, clientID string) string {
	if clientID != "" {
		return clientID
	}
	if id, ok := c.Context().(string); ok {
		return id
	}
	return ""
}

// NewSocketServer initializes a Socket.IO server exposing identify,
// announce, status and leave. A connection that identified a client
// disconnects that client when it closes.
func NewSocketServer(coordinator Coordinator) *socketio.Server {
	server := socketio.NewServer(nil)
	h := Handlers{Coordinator: coordinator}

	server.OnConnect("/", func(c socketio.Conn) error {
		c.SetContext("")
		log.Println("✅ Socket connected:", c.ID())
		return nil
	})

	server.OnEvent("/", "identify", func(c socketio.Conn, key string) map[string]interface{} {
		ack, clientID := h.Identify(context.Background(), boundClient(c, ""), key)
		if clientID != "" {
			c.SetContext(clientID)
		}
		return ack
	})

	server.OnEvent("/", "announce", func(c socketio.Conn, clientID string) map[string]interface{} {
		return h.Announce(context.Background(), boundClient(c, clientID))
	})

	server.OnEvent("/", "status", func(c socketio.Conn, clientID string) map[string]interface{} {
		return h.Status(context.Background(), boundClient(c, clientID))
	})

	server.OnEvent("/", "leave", func(c socketio.Conn, clientID string) map[string]interface{} {
		id := boundClient(c, clientID)
		ack := h.Leave(context.Background(), id)
		if _, failed := ack["error"]; !failed && id == boundClient(c, "") {
			c.SetContext("")
		}
		return ack
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		log.Println("❌ Socket error:", err)
	})

	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		if clientID, ok := c.Context().(string); ok && clientID != "" {
			if err := coordinator.Disconnect(context.Background(), clientID); err != nil {
				log.Printf("❌ Failed to disconnect %s after socket close: %v", clientID, err)
			}
		}
		log.Println("❌ Socket disconnected:", c.ID(), reason)
	})

	return server
}
