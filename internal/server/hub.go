// Package server coordinates sessions, presence, room membership, and
// message routing for the chat relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// inboundEvent pairs a decoded client event with its originating
// connection for routing.
type inboundEvent struct {
	client *Client
	event  Event
}

// Hub owns every piece of shared mutable state: the live connection set,
// the session registry, and room membership. All mutations are
// serialized through the Run loop; concurrent readers go through the
// snapshot helpers guarded by the mutex.
type Hub struct {
	clients    map[string]*Client // keyed by connection id
	registry   *SessionRegistry
	rooms      *RoomMembership
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	logger     *slog.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub ready to manage connections. A nil logger falls
// back to slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		registry:   NewSessionRegistry(),
		rooms:      NewRoomMembership(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients
// with the hub. Write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients
// from the hub. Write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound event routing. This method should be
// called in a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("Received nil client registration; skipping")
				continue
			}
			h.registerClient(client)
			h.startPumps(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case in := <-h.inbound:
			h.route(in.client, in.event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.logger.Info("Client connected", "addr", client.addr, "clients", clientCount)
}

func (h *Hub) startPumps(client *Client) {
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

// unregisterClient drops the connection and releases its session. No
// leave notice or presence update goes out unless a session existed.
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	h.logger.Info("Client disconnected", "addr", client.addr, "clients", clientCount)
	h.handleLeave(client)
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent a race
	// with unregistration closing the channel.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// deliver fans a payload out to the targets, fire-and-forget. A client
// whose send buffer is full is removed and its session released.
func (h *Hub) deliver(targets []*Client, payload []byte) {
	var failed []*Client
	for _, client := range targets {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

func (h *Hub) broadcastAll(payload []byte) {
	h.deliver(h.clientSnapshot(), payload)
}

func (h *Hub) broadcastOthers(sender *Client, payload []byte) {
	clients := h.clientSnapshot()
	targets := make([]*Client, 0, len(clients))
	for _, client := range clients {
		if client != sender {
			targets = append(targets, client)
		}
	}
	h.deliver(targets, payload)
}

// broadcastRoom resolves membership against live connections, so stale
// entries for vanished connections are skipped, never dereferenced.
func (h *Hub) broadcastRoom(room string, payload []byte) {
	members := h.rooms.Members(room)

	h.mutex.RLock()
	targets := make([]*Client, 0, len(members))
	for _, id := range members {
		if client, ok := h.clients[id]; ok {
			targets = append(targets, client)
		}
	}
	h.mutex.RUnlock()

	h.deliver(targets, payload)
}

func (h *Hub) sendToConn(connID string, payload []byte) {
	h.mutex.RLock()
	client, ok := h.clients[connID]
	h.mutex.RUnlock()
	if !ok {
		return
	}
	h.deliver([]*Client{client}, payload)
}

func (h *Hub) encode(kind EventType, payload any) ([]byte, bool) {
	data, err := encodeEvent(kind, payload)
	if err != nil {
		h.logger.Error("Could not encode outbound event", "type", string(kind), "error", err)
		return nil, false
	}
	return data, true
}

func (h *Hub) emitAll(kind EventType, payload any) {
	if data, ok := h.encode(kind, payload); ok {
		h.broadcastAll(data)
	}
}

func (h *Hub) emitOthers(sender *Client, kind EventType, payload any) {
	if data, ok := h.encode(kind, payload); ok {
		h.broadcastOthers(sender, data)
	}
}

func (h *Hub) emitRoom(room string, kind EventType, payload any) {
	if data, ok := h.encode(kind, payload); ok {
		h.broadcastRoom(room, data)
	}
}

func (h *Hub) emitTo(connID string, kind EventType, payload any) {
	if data, ok := h.encode(kind, payload); ok {
		h.sendToConn(connID, data)
	}
}

// removeFailedClients drops clients that could not accept a delivery and
// releases their sessions, exactly as a disconnect would.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var removed []*Client
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client.id]; exists {
			delete(h.clients, client.id)
			client.closed = true
			removed = append(removed, client)
			channelsToClose = append(channelsToClose, client.send)
			h.logger.Warn("Client removed due to full send buffer", "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
	for _, client := range removed {
		h.handleLeave(client)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.logger.Info("Shutting down all client connections")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Error("Error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}

	h.logger.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// client goroutines to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Initiating hub shutdown")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

var (
	hub     = NewHub(nil)
	hubOnce sync.Once
)
