// Package server coordinates client registration, message dispatch, room
// broadcasts and connection cleanup via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Tyrowin/planning-poker/pkg/logger"
	"go.uber.org/zap"
)

// Hub manages all WebSocket client connections. Its Run loop is the only
// goroutine that handles inbound messages, so each message runs to completion
// before the next one starts.
type Hub struct {
	clients map[*Client]bool
	// rooms maps a room id to the clients joined to it. Run goroutine only.
	rooms      map[string]map[*Client]struct{}
	inbound    chan inboundMessage
	register   chan *Client
	unregister chan *Client
	router     *Router
	log        logger.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	// dropped holds clients whose send failed while an event was handled.
	dropped []*Client
}

// NewHub creates a Hub that dispatches inbound messages through router.
func NewHub(router *Router, log logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]struct{}),
		inbound:    make(chan inboundMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		router:     router,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Register hands a client to the Run loop. It returns false once the hub has
// shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn(h.ctx, "Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "connection closed")

		case msg := <-h.inbound:
			h.handleInbound(msg)
		}

		h.drainDropped()
		h.recordStats()
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	setConnections(clientCount)
	h.log.Info(client.logCtx(), "Client registered",
		zap.String("addr", client.addr),
		zap.Int("clients", clientCount))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient forgets the client and runs the disconnect handler. Membership
// in h.clients guards it, so the handler runs once per connection.
func (h *Hub) removeClient(client *Client, reason string) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	setConnections(clientCount)

	ctx := client.logCtx()
	h.log.Info(ctx, "Client unregistered",
		zap.String("addr", client.addr),
		zap.String("reason", reason),
		zap.Int("clients", clientCount))

	h.router.Disconnect(ctx, h.session(client))

	for roomID := range client.rooms {
		h.leave(client, roomID)
	}
}

func (h *Hub) handleInbound(msg inboundMessage) {
	h.mutex.RLock()
	_, registered := h.clients[msg.client]
	h.mutex.RUnlock()
	if !registered {
		return
	}

	if err := h.router.Route(h.ctx, h.session(msg.client), msg.envelope); err != nil {
		h.log.Warn(msg.client.logCtx(), "Closing connection", zap.Error(err))
		h.removeClient(msg.client, err.Error())
	}
}

func (h *Hub) drainDropped() {
	for len(h.dropped) > 0 {
		client := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.removeClient(client, "send buffer full")
	}
}

func (h *Hub) recordStats() {
	setRegistryStats(h.router.Stats())
}

func (h *Hub) join(client *Client, roomID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	members[client] = struct{}{}
	client.rooms[roomID] = struct{}{}
}

func (h *Hub) leave(client *Client, roomID string) {
	delete(client.rooms, roomID)

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// broadcastToRoom delivers out to every client joined to roomID, the sender
// included.
func (h *Hub) broadcastToRoom(roomID string, out Outbound) {
	members := h.rooms[roomID]
	if len(members) == 0 {
		return
	}

	payload, err := json.Marshal(out)
	if err != nil {
		h.log.Error(h.ctx, "Error encoding broadcast", zap.String("type", out.Type), zap.Error(err))
		return
	}

	h.log.Debug(h.ctx, "Broadcasting to room",
		zap.String("roomId", roomID),
		zap.String("type", out.Type),
		zap.Int("clients", len(members)))

	for client := range members {
		if !h.safeSend(client, payload) {
			h.dropped = append(h.dropped, client)
		}
	}
}

func (h *Hub) deliver(client *Client, out Outbound) {
	payload, err := json.Marshal(out)
	if err != nil {
		h.log.Error(client.logCtx(), "Error encoding reply", zap.String("type", out.Type), zap.Error(err))
		return
	}

	if !h.safeSend(client, payload) {
		h.dropped = append(h.dropped, client)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info(h.ctx, "Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn(client.logCtx(), "Error closing client connection", zap.Error(err))
		}
	}

	h.log.Info(h.ctx, "Closed client connections", zap.Int("clients", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info(h.ctx, "Initiating hub shutdown...")

	h.cancel()

	select {
	case <-h.done:
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info(context.Background(), "Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn(context.Background(), "Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// session is the poker.Conn handed to handlers for one inbound message.
type session struct {
	hub    *Hub
	client *Client
}

func (h *Hub) session(client *Client) *session {
	return &session{hub: h, client: client}
}

func (s *session) ID() string {
	return s.client.id
}

func (s *session) Join(roomID string) {
	s.hub.join(s.client, roomID)
}

func (s *session) Leave(roomID string) {
	s.hub.leave(s.client, roomID)
}

func (s *session) BroadcastToRoom(roomID, event string, payload any) {
	s.hub.broadcastToRoom(roomID, Outbound{Type: event, Payload: payload})
}

func (s *session) reply(ack *uint64, messageType string, payload any) {
	s.hub.deliver(s.client, Outbound{Type: messageType, Ack: ack, Payload: payload})
}
