// Package cart owns the in-progress order before checkout: line merging,
// quantity and notes mutation, and running totals. Carts are scoped to one
// (restaurant, session) pair and persisted through a Store on every
// mutation; nothing here touches the network.
package cart

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// TTL is how long a persisted cart stays restorable. Anything older is
// discarded on load rather than restored.
const TTL = 24 * time.Hour

// ExtraSelection is a chosen extra option with its own quantity, price
// snapshotted at selection time.
type ExtraSelection struct {
	OptionID uuid.UUID       `json:"option_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

// LineItem is a product snapshot plus selections. Price is copied from the
// product at add time and never re-read.
type LineItem struct {
	ProductID   uuid.UUID        `json:"product_id"`
	ProductName string           `json:"product_name"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Quantity    int32            `json:"quantity"`
	Extras      []ExtraSelection `json:"extras,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// MergeKey identifies a line for dedup: product id, sorted extra option ids,
// and the notes text. Two adds with the same key merge into one line.
func (li LineItem) MergeKey() string {
	ids := make([]string, len(li.Extras))
	for i, e := range li.Extras {
		ids[i] = e.OptionID.String()
	}
	sort.Strings(ids)
	return li.ProductID.String() + "|" + strings.Join(ids, ",") + "|" + li.Notes
}

// Total is (unit price + extras per unit) × quantity.
func (li LineItem) Total() decimal.Decimal {
	extras := make([]pricing.Extra, len(li.Extras))
	for i, e := range li.Extras {
		extras[i] = pricing.Extra{Price: e.Price, Quantity: e.Quantity}
	}
	return pricing.LineTotal(li.UnitPrice, li.Quantity, extras)
}

// Engine mutates one session's cart and persists it after every change.
type Engine struct {
	mu    sync.Mutex
	key   Key
	store Store
	items []LineItem
	now   func() time.Time
}

// NewEngine restores the cart persisted under key, discarding snapshots older
// than TTL.
func NewEngine(key Key, store Store, now func() time.Time) (*Engine, error) {
	if now == nil {
		now = time.Now
	}
	e := &Engine{key: key, store: store, now: now}

	snap, ok, err := store.Load(key)
	if err != nil {
		return nil, err
	}
	if ok {
		saved := time.UnixMilli(snap.Timestamp)
		if now().Sub(saved) <= TTL {
			e.items = snap.Items
		} else {
			// Expired: drop the stale snapshot instead of restoring it.
			if err := store.Delete(key); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// AddItem merges into an existing line when the merge key matches, otherwise
// appends a new line. Quantities below 1 are coerced to 1.
func (e *Engine) AddItem(item LineItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	key := item.MergeKey()
	for i := range e.items {
		if e.items[i].MergeKey() == key {
			e.items[i].Quantity += item.Quantity
			return e.persist()
		}
	}
	e.items = append(e.items, item)
	return e.persist()
}

// UpdateQuantity sets the quantity of the line at index; zero or negative
// removes the line.
func (e *Engine) UpdateQuantity(index int, quantity int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.items) {
		return ErrIndexOutOfRange
	}
	if quantity <= 0 {
		e.items = append(e.items[:index], e.items[index+1:]...)
	} else {
		e.items[index].Quantity = quantity
	}
	return e.persist()
}

// UpdateNotes replaces the notes of the line at index in place.
func (e *Engine) UpdateNotes(index int, notes string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.items) {
		return ErrIndexOutOfRange
	}
	e.items[index].Notes = notes
	return e.persist()
}

// UpdateExtras replaces the extra selections of the line at index in place.
func (e *Engine) UpdateExtras(index int, extras []ExtraSelection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.items) {
		return ErrIndexOutOfRange
	}
	e.items[index].Extras = extras
	return e.persist()
}

// Remove deletes the line at index.
func (e *Engine) Remove(index int) error {
	return e.UpdateQuantity(index, 0)
}

// Clear empties the cart and removes the persisted snapshot.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.items = nil
	return e.store.Delete(e.key)
}

// TotalItems sums quantities over all lines.
func (e *Engine) TotalItems() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var n int32
	for _, li := range e.items {
		n += li.Quantity
	}
	return n
}

// TotalPrice sums line totals over all lines.
func (e *Engine) TotalPrice() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := decimal.Zero
	for _, li := range e.items {
		total = total.Add(li.Total())
	}
	return total
}

// Items returns a copy of the current lines.
func (e *Engine) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]LineItem, len(e.items))
	copy(out, e.items)
	return out
}

func (e *Engine) persist() error {
	return e.store.Save(e.key, Snapshot{
		Items:     e.items,
		Timestamp: e.now().UnixMilli(),
	})
}
