// Package realtime keeps dashboard state consistent with at-least-once,
// unordered event delivery: caches apply full authoritative records
// idempotently, and an in-flight guard keeps double-submitted actions out.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OrderView is a cached projection of an order as pushed over the wire.
// Record carries the full serialized order, so applying a view replaces the
// cached entry wholesale instead of patching fields.
type OrderView struct {
	ID        uuid.UUID       `json:"id"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
	Record    json.RawMessage `json:"record"`
}

// OrderCache reconciles order events for one restaurant's dashboards.
// Events may arrive duplicated or out of order; canTransition decides
// whether a status change moves forward, and a view whose status would
// regress the cached one is dropped as stale.
type OrderCache struct {
	mu            sync.RWMutex
	orders        map[uuid.UUID]OrderView
	canTransition func(from, to string) bool
}

func NewOrderCache(canTransition func(from, to string) bool) *OrderCache {
	return &OrderCache{
		orders:        make(map[uuid.UUID]OrderView),
		canTransition: canTransition,
	}
}

// Apply upserts a view and reports whether it was accepted. A duplicate of
// the cached status is accepted (idempotent replace, the record may carry
// newer non-status fields); a status that cannot be reached from the cached
// one is stale and rejected.
func (c *OrderCache) Apply(view OrderView) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.orders[view.ID]
	if ok && existing.Status != view.Status && !c.canTransition(existing.Status, view.Status) {
		return false
	}
	c.orders[view.ID] = view
	return true
}

// Delete removes an order from the cache. Deleting an absent id is a no-op,
// so duplicate deletes are harmless.
func (c *OrderCache) Delete(id uuid.UUID) {
	c.mu.Lock()
	delete(c.orders, id)
	c.mu.Unlock()
}

// Get returns the cached view for an order.
func (c *OrderCache) Get(id uuid.UUID) (OrderView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.orders[id]
	return v, ok
}

// Len reports the number of cached orders.
func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

// ListCache is an id-keyed cache for list-shaped entities (products, coupons,
// zones, tables): events carry the full record, so reconciliation is plain
// upsert/delete and duplicates converge to the same state.
type ListCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]json.RawMessage
}

func NewListCache() *ListCache {
	return &ListCache{entries: make(map[uuid.UUID]json.RawMessage)}
}

func (c *ListCache) Upsert(id uuid.UUID, record json.RawMessage) {
	c.mu.Lock()
	c.entries[id] = record
	c.mu.Unlock()
}

func (c *ListCache) Delete(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *ListCache) Get(id uuid.UUID) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

func (c *ListCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
