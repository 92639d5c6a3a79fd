package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to POS and kitchen screens.
const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderEdited          = "order.edited"
	EventOrderCancelled       = "order.cancelled"
	EventCancelledItemCreated = "cancelled_item.created"
	EventCancelledItemDecided = "cancelled_item.decided"
)

// Event is a WebSocket message to be broadcast.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// businessEvent routes an event to one business room.
type businessEvent struct {
	BusinessID uuid.UUID
	Event      Event
}

// Hub maintains the set of active clients, one room per business, and
// broadcasts events to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *businessEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *businessEvent, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.businessID] == nil {
				h.rooms[client.businessID] = make(map[*Client]bool)
			}
			h.rooms[client.businessID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.businessID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.businessID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.BusinessID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister.
					close(client.send)
					delete(h.rooms[event.BusinessID], client)
					if len(h.rooms[event.BusinessID]) == 0 {
						delete(h.rooms, event.BusinessID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all clients subscribed to a business.
func (h *Hub) Broadcast(businessID uuid.UUID, event Event) {
	h.broadcast <- &businessEvent{
		BusinessID: businessID,
		Event:      event,
	}
}

// Notify marshals the payload and broadcasts it to the business room.
// A payload that fails to marshal is logged and dropped; pushing
// events must never fail an API request.
func (h *Hub) Notify(businessID uuid.UUID, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.Broadcast(businessID, Event{Type: eventType, Payload: raw})
}
