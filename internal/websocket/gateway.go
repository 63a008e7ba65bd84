package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"direct-chat/internal/observability"
	"direct-chat/internal/presence"
)

// Gateway owns every live realtime connection and the presence registry.
// Attach and detach requests funnel through Run's loop; delivery reads the
// maps directly under the lock so callers get a synchronous delivered/missed
// answer.
type Gateway struct {
	mu       sync.RWMutex
	clients  map[string]*Client // connectionID -> client
	presence *presence.Registry

	// Register client
	register chan *Client

	// Unregister client
	unregister chan *Client

	// Shutdown signal
	done chan struct{}
}

// NewGateway creates a new Gateway
func NewGateway(registry *presence.Registry) *Gateway {
	return &Gateway{
		clients:    make(map[string]*Client),
		presence:   registry,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the gateway's main loop
func (g *Gateway) Run(ctx context.Context) error {
	defer g.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("gateway shutting down gracefully")
			return ctx.Err()

		case client := <-g.register:
			g.attach(client)

		case client := <-g.unregister:
			g.detach(client)
		}
	}
}

// Register attaches a client to the gateway
func (g *Gateway) Register(client *Client) {
	g.register <- client
}

// Unregister detaches a client from the gateway
func (g *Gateway) Unregister(client *Client) {
	g.unregister <- client
}

// SendToUser delivers a single event to the recipient's active connection.
// It reports whether the event was handed to a live connection; an offline
// recipient is not an error, the message is already persisted.
func (g *Gateway) SendToUser(userID, event string, payload any) bool {
	data, err := json.Marshal(Event{Name: event, Data: payload})
	if err != nil {
		slog.Error("failed to marshal event",
			slog.String("error", err.Error()),
			slog.String("event", event))
		return false
	}

	// Hold the read lock through the send attempt so a concurrent detach
	// cannot close the channel underneath us.
	g.mu.RLock()
	var client *Client
	if connID, ok := g.presence.Lookup(userID); ok {
		client = g.clients[connID]
	}

	if client == nil {
		g.mu.RUnlock()
		observability.RealtimeEventsTotal.WithLabelValues(event, "recipient_offline").Inc()
		return false
	}

	var delivered bool
	select {
	case client.send <- data:
		delivered = true
	default:
	}
	g.mu.RUnlock()

	if delivered {
		observability.RealtimeEventsTotal.WithLabelValues(event, "delivered").Inc()
		return true
	}

	// Slow consumer. Drop the connection rather than block the sender;
	// the client reconnects and reloads the conversation over HTTP.
	observability.RealtimeEventsTotal.WithLabelValues(event, "dropped").Inc()
	go g.Unregister(client)
	return false
}

// attach registers the client's presence and announces the new roster. A
// second connection for the same user evicts the first (last-connect-wins).
func (g *Gateway) attach(client *Client) {
	g.mu.Lock()
	if oldConnID, ok := g.presence.Lookup(client.userID); ok {
		if old, exists := g.clients[oldConnID]; exists {
			delete(g.clients, oldConnID)
			g.closeClientSend(old)
			observability.RealtimeConnectionsActive.Dec()
			slog.Info("replaced connection for user",
				slog.String("user_id", client.userID),
				slog.String("old_conn_id", oldConnID))
		}
	}
	g.presence.Register(client.userID, client.connID)
	g.clients[client.connID] = client
	g.mu.Unlock()

	observability.RealtimeConnectionsActive.Inc()
	slog.Info("client attached",
		slog.String("user_id", client.userID),
		slog.String("conn_id", client.connID))

	g.broadcastOnlineUsers()
}

// detach removes the client if it still owns its registry entry. A stale
// client that was already evicted by a newer connection is a no-op, so the
// newer connection's presence survives.
func (g *Gateway) detach(client *Client) {
	g.mu.Lock()
	_, active := g.clients[client.connID]
	if active {
		delete(g.clients, client.connID)
		g.presence.Unregister(client.connID)
		g.closeClientSend(client)
	}
	g.mu.Unlock()

	if !active {
		return
	}

	observability.RealtimeConnectionsActive.Dec()
	slog.Info("client detached",
		slog.String("user_id", client.userID),
		slog.String("conn_id", client.connID))

	g.broadcastOnlineUsers()
}

// broadcastOnlineUsers pushes the full roster snapshot to every connection
func (g *Gateway) broadcastOnlineUsers() {
	online := g.presence.OnlineUserIDs()
	observability.PresenceOnlineUsers.Set(float64(len(online)))

	data, err := json.Marshal(Event{Name: EventOnlineUsers, Data: online})
	if err != nil {
		slog.Error("failed to marshal online users event",
			slog.String("error", err.Error()))
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, client := range g.clients {
		select {
		case client.send <- data:
			observability.RealtimeEventsTotal.WithLabelValues(EventOnlineUsers, "broadcast").Inc()
		default:
			// Skip a full buffer; the next roster change resends the snapshot
		}
	}
}

// closeClientSend closes a client's send channel. Every caller holds the
// write lock and removes the client from the clients map in the same critical
// section, so each channel is closed exactly once even with pending frames
// still buffered.
func (g *Gateway) closeClientSend(client *Client) {
	close(client.send)
}

// shutdown performs graceful cleanup of all connections
func (g *Gateway) shutdown() {
	close(g.done)

	g.mu.Lock()
	defer g.mu.Unlock()

	for connID, client := range g.clients {
		g.closeClientSend(client)
		delete(g.clients, connID)
		slog.Info("closed client connection",
			slog.String("user_id", client.userID),
			slog.String("conn_id", connID))
	}

	slog.Info("gateway shutdown complete")
}
