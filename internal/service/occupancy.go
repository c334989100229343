package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
)

// TableStatusOf derives a table's presentation status. Attention wins over
// everything; an occupied table can still be flagged reserved but the flag
// only shows when the table is otherwise free.
func TableStatusOf(attention, reserved bool, openOrders int64) string {
	switch {
	case attention:
		return enum.TableStatusRequesting
	case openOrders > 0:
		return enum.TableStatusOccupied
	case reserved:
		return enum.TableStatusReserved
	default:
		return enum.TableStatusFree
	}
}

// ComandaStatusOf derives a comanda's status from its open order count.
func ComandaStatusOf(openOrders int64) string {
	if openOrders > 0 {
		return enum.ComandaStatusOpen
	}
	return enum.ComandaStatusClosed
}

// TableView is one row of the occupancy board.
type TableView struct {
	ID             uuid.UUID  `json:"id"`
	Number         int32      `json:"number"`
	Label          string     `json:"label,omitempty"`
	Status         string     `json:"status"`
	OpenOrders     int64      `json:"open_orders"`
	OccupiedSince  *time.Time `json:"occupied_since,omitempty"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
}

// ComandaView is one row of the comanda board.
type ComandaView struct {
	ID             uuid.UUID  `json:"id"`
	Number         int32      `json:"number"`
	Label          string     `json:"label,omitempty"`
	Status         string     `json:"status"`
	OpenOrders     int64      `json:"open_orders"`
	OpenSince      *time.Time `json:"open_since,omitempty"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
}

// OccupancySnapshot is a full board state for one restaurant.
type OccupancySnapshot struct {
	Tables   []TableView   `json:"tables"`
	Comandas []ComandaView `json:"comandas"`
}

// TableStore defines the DB methods the table service needs.
type TableStore interface {
	GetNextTableNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	SetTableAttention(ctx context.Context, arg database.SetTableAttentionParams) (database.Table, error)
	SetTableReserved(ctx context.Context, arg database.SetTableReservedParams) (database.Table, error)
	ListTableOccupancy(ctx context.Context, restaurantID uuid.UUID) ([]database.TableOccupancyRow, error)
	GetNextComandaNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	CreateComanda(ctx context.Context, arg database.CreateComandaParams) (database.Comanda, error)
	ListComandaOccupancy(ctx context.Context, restaurantID uuid.UUID) ([]database.ComandaOccupancyRow, error)
}

// NewTableStore binds a TableStore to a DBTX.
type NewTableStore func(db database.DBTX) TableStore

// TableService creates tables/comandas and computes occupancy boards.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
	now      func() time.Time
}

func NewTableService(pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{pool: pool, newStore: newStore, now: time.Now}
}

// CreateTables creates count tables with contiguous numbers in one
// transaction, so a concurrent batch cannot interleave numbers. A start
// number <= 0 means "continue from the highest existing number".
func (s *TableService) CreateTables(ctx context.Context, restaurantID uuid.UUID, count, start int32, label string) ([]database.Table, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be > 0")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	next := start
	if next <= 0 {
		next, err = store.GetNextTableNumber(ctx, restaurantID)
		if err != nil {
			return nil, fmt.Errorf("get next table number: %w", err)
		}
	}

	tables := make([]database.Table, 0, count)
	for i := int32(0); i < count; i++ {
		t, err := store.CreateTable(ctx, database.CreateTableParams{
			RestaurantID: restaurantID,
			Number:       next + i,
			Label:        textOrNull(label),
		})
		if err != nil {
			return nil, fmt.Errorf("create table %d: %w", next+i, err)
		}
		tables = append(tables, t)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return tables, nil
}

// CreateComandas creates count comandas with contiguous numbers, starting
// from the caller's number or the next available one.
func (s *TableService) CreateComandas(ctx context.Context, restaurantID uuid.UUID, count, start int32, label string) ([]database.Comanda, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be > 0")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	next := start
	if next <= 0 {
		next, err = store.GetNextComandaNumber(ctx, restaurantID)
		if err != nil {
			return nil, fmt.Errorf("get next comanda number: %w", err)
		}
	}

	comandas := make([]database.Comanda, 0, count)
	for i := int32(0); i < count; i++ {
		c, err := store.CreateComanda(ctx, database.CreateComandaParams{
			RestaurantID: restaurantID,
			Number:       next + i,
			Label:        textOrNull(label),
		})
		if err != nil {
			return nil, fmt.Errorf("create comanda %d: %w", next+i, err)
		}
		comandas = append(comandas, c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return comandas, nil
}

// SetAttention toggles the waiter-call flag. Clearing it is a staff action;
// the order lifecycle never touches it.
func (s *TableService) SetAttention(ctx context.Context, store TableStore, restaurantID, tableID uuid.UUID, attention bool) (database.Table, error) {
	return store.SetTableAttention(ctx, database.SetTableAttentionParams{
		ID:           tableID,
		RestaurantID: restaurantID,
		Attention:    attention,
	})
}

// SetReserved toggles the reservation flag.
func (s *TableService) SetReserved(ctx context.Context, store TableStore, restaurantID, tableID uuid.UUID, reserved bool) (database.Table, error) {
	return store.SetTableReserved(ctx, database.SetTableReservedParams{
		ID:           tableID,
		RestaurantID: restaurantID,
		Reserved:     reserved,
	})
}

// Snapshot builds the current occupancy board. occupied_since and elapsed
// time are derived from the oldest open order, never stored.
func (s *TableService) Snapshot(ctx context.Context, store TableStore, restaurantID uuid.UUID) (*OccupancySnapshot, error) {
	now := s.now()

	tableRows, err := store.ListTableOccupancy(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list table occupancy: %w", err)
	}
	tables := make([]TableView, 0, len(tableRows))
	for _, r := range tableRows {
		v := TableView{
			ID:         r.Table.ID,
			Number:     r.Table.Number,
			Label:      r.Table.Label.String,
			Status:     TableStatusOf(r.Table.Attention, r.Table.Reserved, r.OpenOrders),
			OpenOrders: r.OpenOrders,
		}
		if r.OccupiedSince.Valid && r.OpenOrders > 0 {
			since := r.OccupiedSince.Time
			v.OccupiedSince = &since
			v.ElapsedSeconds = int64(now.Sub(since).Seconds())
		}
		tables = append(tables, v)
	}

	comandaRows, err := store.ListComandaOccupancy(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list comanda occupancy: %w", err)
	}
	comandas := make([]ComandaView, 0, len(comandaRows))
	for _, r := range comandaRows {
		v := ComandaView{
			ID:         r.Comanda.ID,
			Number:     r.Comanda.Number,
			Label:      r.Comanda.Label.String,
			Status:     ComandaStatusOf(r.OpenOrders),
			OpenOrders: r.OpenOrders,
		}
		if r.OccupiedSince.Valid && r.OpenOrders > 0 {
			since := r.OccupiedSince.Time
			v.OpenSince = &since
			v.ElapsedSeconds = int64(now.Sub(since).Seconds())
		}
		comandas = append(comandas, v)
	}

	return &OccupancySnapshot{Tables: tables, Comandas: comandas}, nil
}

// OccupancyBroadcaster pushes a board snapshot to a restaurant's dashboards.
type OccupancyBroadcaster interface {
	BroadcastOccupancy(restaurantID uuid.UUID, snapshot *OccupancySnapshot)
}

// Tracker periodically recomputes occupancy boards for watched restaurants
// and broadcasts them, so elapsed timers keep moving on dashboards even when
// no order events fire.
type Tracker struct {
	svc      *TableService
	store    TableStore
	hub      OccupancyBroadcaster
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	watched map[uuid.UUID]struct{}
	rooms   func() []uuid.UUID
}

func NewTracker(svc *TableService, store TableStore, hub OccupancyBroadcaster, interval time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		svc:      svc,
		store:    store,
		hub:      hub,
		interval: interval,
		logger:   logger,
		watched:  make(map[uuid.UUID]struct{}),
	}
}

// FollowRooms refreshes every restaurant the lister reports on each tick, in
// addition to explicitly watched ones. Wired to the hub's connected rooms so
// boards update only while someone is looking at them.
func (t *Tracker) FollowRooms(rooms func() []uuid.UUID) {
	t.rooms = rooms
}

// Watch adds a restaurant to the periodic refresh set.
func (t *Tracker) Watch(restaurantID uuid.UUID) {
	t.mu.Lock()
	t.watched[restaurantID] = struct{}{}
	t.mu.Unlock()
}

// Unwatch removes a restaurant from the refresh set.
func (t *Tracker) Unwatch(restaurantID uuid.UUID) {
	t.mu.Lock()
	delete(t.watched, restaurantID)
	t.mu.Unlock()
}

// Run loops until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	t.mu.Lock()
	set := make(map[uuid.UUID]struct{}, len(t.watched))
	for id := range t.watched {
		set[id] = struct{}{}
	}
	t.mu.Unlock()

	if t.rooms != nil {
		for _, id := range t.rooms() {
			set[id] = struct{}{}
		}
	}

	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	for _, id := range ids {
		snapshot, err := t.svc.Snapshot(ctx, t.store, id)
		if err != nil {
			t.logger.Error("occupancy snapshot failed", "restaurant_id", id, "error", err)
			continue
		}
		t.hub.BroadcastOccupancy(id, snapshot)
	}
}
