// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/metrics"
	syncpkg "github.com/stemmahq/stemma/internal/sync"
)

// Message types understood by clients.
const (
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeSyncCompleted = "sync_completed"
)

// Message is the envelope every frame on the wire uses.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SyncCompletedData tells a client that another session changed the tree
// and how much changed, so it can decide between an incremental and a full
// refresh.
type SyncCompletedData struct {
	TreeID    uuid.UUID `json:"tree_id"`
	Timestamp string    `json:"timestamp"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
}

// userMessage is a message addressed to every connection of one user.
type userMessage struct {
	userID uuid.UUID
	msg    Message
}

// Hub tracks active connections per user and fans messages out to them.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	notify     chan userMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run it with Serve before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		notify:     make(chan userMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve runs the hub loop until the context is canceled, then closes every
// connection and returns the context error. It implements suture.Service.
//
// Channel selection is prioritized so behavior stays predictable when
// several channels are ready at once: shutdown first, then client
// lifecycle, then message fanout. Go's select picks randomly among ready
// cases, so each priority level gets its own non-blocking check.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.unregister(client)

		case m := <-h.notify:
			h.deliver(m)
		}
	}
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// NotifySyncCompleted tells every session of the user that a sync batch
// committed against the tree. It never blocks: when the hub is saturated
// the notification is dropped, because the syncing client already has the
// full result in its HTTP response.
func (h *Hub) NotifySyncCompleted(userID, treeID uuid.UUID, result *syncpkg.Result) {
	data := SyncCompletedData{
		TreeID:    treeID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Created:   result.CreatedCount(),
		Updated:   result.UpdatedCount(),
		Deleted:   result.DeletedCount(),
	}
	h.Send(userID, MessageTypeSyncCompleted, data)
}

// Send queues a message for every connection of the user. Drops with a
// warning when the hub's queue is full.
func (h *Hub) Send(userID uuid.UUID, messageType string, data interface{}) {
	m := userMessage{
		userID: userID,
		msg:    Message{Type: messageType, Data: data},
	}

	select {
	case h.notify <- m:
	default:
		metrics.WSErrors.WithLabelValues("notify_queue_full").Inc()
		logging.Warn().
			Str("message_type", messageType).
			Msg("notify queue full, dropping message")
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	conns := h.clients[client.userID]
	if conns == nil {
		conns = make(map[*Client]bool)
		h.clients[client.userID] = conns
	}
	conns[client] = true
	total := h.countLocked()
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Str("user_id", client.userID.String()).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	removed := false
	if conns, ok := h.clients[client.userID]; ok {
		if conns[client] {
			delete(conns, client)
			close(client.send)
			removed = true
		}
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
	total := h.countLocked()
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Dec()
		logging.Info().
			Str("user_id", client.userID.String()).
			Int("total_clients", total).
			Msg("websocket client disconnected")
	}
}

// deliver sends a message to every connection of one user. Connections are
// visited in client-id order so delivery order is reproducible, and a
// connection whose send buffer is full is dropped rather than allowed to
// stall the loop.
func (h *Hub) deliver(m userMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[m.userID]
	if len(conns) == 0 {
		return
	}

	targets := make([]*Client, 0, len(conns))
	for client := range conns {
		targets = append(targets, client)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].id < targets[j].id
	})

	for _, client := range targets {
		select {
		case client.send <- m.msg:
			metrics.WSMessagesSent.Inc()
		default:
			close(client.send)
			delete(conns, client)
			metrics.WSConnections.Dec()
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			logging.Warn().
				Str("user_id", m.userID.String()).
				Msg("dropping slow websocket client")
		}
	}

	if len(conns) == 0 {
		delete(h.clients, m.userID)
	}
}

// shutdown closes every connection and logs why the hub stopped. Context
// cancellation is the expected path, so it is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	closed := h.closeAll()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

// closeAll closes every client in id order and empties the registry.
func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make([]*Client, 0)
	for _, conns := range h.clients {
		for client := range conns {
			targets = append(targets, client)
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].id < targets[j].id
	})

	for _, client := range targets {
		close(client.send)
		metrics.WSConnections.Dec()
	}
	h.clients = make(map[uuid.UUID]map[*Client]bool)

	return len(targets)
}

// ClientCount returns the number of connections across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// UserConnectionCount returns the number of open connections for one user.
func (h *Hub) UserConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) countLocked() int {
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
