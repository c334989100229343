package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

const subjectPrefix = "rt."

// envelope wraps a hub event for transport between instances. Origin lets a
// subscriber skip events it published itself, since its local hub already
// delivered them.
type envelope struct {
	Origin       string    `json:"origin"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Event        ws.Event  `json:"event"`
}

// Bus relays hub events across API instances over NATS, so dashboards
// connected to different instances see the same stream. Incoming order
// events are reconciled through a per-restaurant OrderCache before they
// reach the local hub: with several publishers an event can arrive after a
// later status has already been replayed, and rebroadcasting it would walk
// dashboards backwards.
type Bus struct {
	conn   *nats.Conn
	hub    *ws.Hub
	origin string
	sub    *nats.Subscription

	mu     sync.Mutex
	orders map[uuid.UUID]*OrderCache
}

func newBus(hub *ws.Hub) *Bus {
	return &Bus{
		hub:    hub,
		origin: uuid.NewString(),
		orders: make(map[uuid.UUID]*OrderCache),
	}
}

// Connect dials NATS and subscribes to all restaurant subjects. Received
// events from other instances are replayed into the local hub.
func Connect(url string, hub *ws.Hub) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name("pedefacil-api"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := newBus(hub)
	b.conn = conn

	sub, err := conn.Subscribe(subjectPrefix+">", b.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	b.sub = sub
	return b, nil
}

func (b *Bus) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		slog.Warn("drop malformed bus event", "subject", msg.Subject, "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if !b.reconcile(env) {
		slog.Debug("drop stale bus event", "type", env.Event.Type, "restaurant_id", env.RestaurantID)
		return
	}
	b.hub.BroadcastToRestaurant(env.RestaurantID, env.Event)
}

// orderEventPayload is the slice of an order event the reconciler needs.
type orderEventPayload struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// reconcile reports whether an incoming event should be replayed. Only order
// events carry a lifecycle status to gate on; everything else is a full
// authoritative record and replaying it is always safe.
func (b *Bus) reconcile(env envelope) bool {
	if env.Event.Type != ws.EventOrderCreated && env.Event.Type != ws.EventOrderUpdated {
		return true
	}
	var p orderEventPayload
	if err := json.Unmarshal(env.Event.Payload, &p); err != nil || p.ID == uuid.Nil || p.Status == "" {
		return true
	}
	cache := b.cacheFor(env.RestaurantID)
	ok := cache.Apply(OrderView{ID: p.ID, Status: p.Status, Record: env.Event.Payload})
	if ok && service.IsTerminal(p.Status) {
		// Nothing can follow a terminal status, so the entry can go.
		cache.Delete(p.ID)
	}
	return ok
}

func (b *Bus) cacheFor(restaurantID uuid.UUID) *OrderCache {
	b.mu.Lock()
	defer b.mu.Unlock()
	cache, ok := b.orders[restaurantID]
	if !ok {
		cache = NewOrderCache(service.CanTransition)
		b.orders[restaurantID] = cache
	}
	return cache
}

// Publish sends a hub event to the restaurant's subject for other instances.
func (b *Bus) Publish(restaurantID uuid.UUID, event ws.Event) error {
	data, err := json.Marshal(envelope{
		Origin:       b.origin,
		RestaurantID: restaurantID,
		Event:        event,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.conn.Publish(subjectPrefix+restaurantID.String(), data)
}

// Close drains the subscription and closes the connection.
func (b *Bus) Close() {
	if b.sub != nil {
		_ = b.sub.Drain()
	}
	b.conn.Close()
}

// Notifier broadcasts an event to the local hub and, when a bus is
// configured, to every other instance. A nil bus means single-instance mode.
type Notifier struct {
	hub *ws.Hub
	bus *Bus
}

func NewNotifier(hub *ws.Hub, bus *Bus) *Notifier {
	return &Notifier{hub: hub, bus: bus}
}

// Notify marshals payload once and fans it out.
func (n *Notifier) Notify(restaurantID uuid.UUID, eventType string, payload any) {
	event, err := ws.NewEvent(eventType, payload)
	if err != nil {
		slog.Error("marshal event", "type", eventType, "error", err)
		return
	}
	n.hub.BroadcastToRestaurant(restaurantID, event)
	if n.bus != nil {
		if err := n.bus.Publish(restaurantID, event); err != nil {
			slog.Warn("bus publish failed", "type", eventType, "error", err)
		}
	}
}

// BroadcastOccupancy satisfies the occupancy tracker's broadcaster.
func (n *Notifier) BroadcastOccupancy(restaurantID uuid.UUID, snapshot *service.OccupancySnapshot) {
	n.Notify(restaurantID, ws.EventOccupancySnapshot, snapshot)
}
