package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"merchantpay/internal/notify"
)

// adminRoom is the pseudo-user every connected admin client also joins.
const adminRoom = "@admins"

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Deliver pushes event to the owning user's connections, and to every
// admin connection when the event is addressed to admins. Slow clients
// miss messages rather than block delivery.
func (h *Hub) Deliver(_ context.Context, event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.UserID != "" && event.Audience != notify.AudienceCustomer {
		h.broadcast(event.UserID, payload)
	}
	if event.Audience == notify.AudienceAdmin {
		h.broadcast(adminRoom, payload)
	}
	return nil
}

func (h *Hub) broadcast(room string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[room] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
