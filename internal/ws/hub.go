package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to restaurant dashboards. Consumers treat delivery as
// at-least-once and unordered; every payload carries the full authoritative
// record so events can be applied idempotently.
const (
	EventOrderCreated      = "order.created"
	EventOrderUpdated      = "order.updated"
	EventOrderItemUpdated  = "order.item_updated"
	EventTableUpdated      = "table.updated"
	EventComandaUpdated    = "comanda.updated"
	EventOccupancySnapshot = "occupancy.snapshot"
	EventProductUpdated    = "product.updated"
	EventCouponUpdated     = "coupon.updated"
	EventZoneUpdated       = "zone.updated"
)

// Event is a WebSocket message to be broadcast.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

// restaurantEvent routes an event to one restaurant's room.
type restaurantEvent struct {
	RestaurantID uuid.UUID
	Event        Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Each restaurant gets its own room; dashboards only ever see their own
// restaurant's events.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *restaurantEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *restaurantEvent, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.restaurantID] == nil {
				h.rooms[client.restaurantID] = make(map[*Client]bool)
			}
			h.rooms[client.restaurantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.restaurantID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.restaurantID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.RestaurantID]

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
					delete(h.rooms[event.RestaurantID], client)
					if len(h.rooms[event.RestaurantID]) == 0 {
						delete(h.rooms, event.RestaurantID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRestaurant sends an event to all clients subscribed to a
// restaurant. This is the public API for handlers to broadcast events.
func (h *Hub) BroadcastToRestaurant(restaurantID uuid.UUID, event Event) {
	h.broadcast <- &restaurantEvent{
		RestaurantID: restaurantID,
		Event:        event,
	}
}

// Notify marshals payload and broadcasts it; marshal failures are logged and
// dropped rather than taking down the caller.
func (h *Hub) Notify(restaurantID uuid.UUID, eventType string, payload any) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		slog.Error("marshal ws event", "type", eventType, "error", err)
		return
	}
	h.BroadcastToRestaurant(restaurantID, event)
}

// RoomSize reports the number of clients in a restaurant's room.
func (h *Hub) RoomSize(restaurantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[restaurantID])
}

// Rooms lists the restaurants that currently have at least one connected
// client.
func (h *Hub) Rooms() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}
