package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableServicer interface {
	CreateTables(ctx context.Context, restaurantID uuid.UUID, count, start int32, label string) ([]database.Table, error)
	CreateComandas(ctx context.Context, restaurantID uuid.UUID, count, start int32, label string) ([]database.Comanda, error)
	SetAttention(ctx context.Context, store service.TableStore, restaurantID, tableID uuid.UUID, attention bool) (database.Table, error)
	SetReserved(ctx context.Context, store service.TableStore, restaurantID, tableID uuid.UUID, reserved bool) (database.Table, error)
	Snapshot(ctx context.Context, store service.TableStore, restaurantID uuid.UUID) (*service.OccupancySnapshot, error)
}

// TableHandler handles table/comanda management and the occupancy board.
type TableHandler struct {
	svc      TableServicer
	store    service.TableStore
	notifier Notifier
}

func NewTableHandler(svc TableServicer, store service.TableStore, notifier Notifier) *TableHandler {
	return &TableHandler{svc: svc, store: store, notifier: notifier}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tables", h.CreateTables)
	r.Post("/comandas", h.CreateComandas)
	r.Patch("/tables/{id}/attention", h.SetAttention)
	r.Patch("/tables/{id}/reserved", h.SetReserved)
	r.Get("/occupancy", h.Occupancy)
}

type createTablesRequest struct {
	Count       int32  `json:"count"`
	StartNumber int32  `json:"start_number"`
	Label       string `json:"label"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    int32     `json:"number"`
	Label     *string   `json:"label"`
	Attention bool      `json:"attention"`
	Reserved  bool      `json:"reserved"`
}

type comandaResponse struct {
	ID     uuid.UUID `json:"id"`
	Number int32     `json:"number"`
	Label  *string   `json:"label"`
}

type setFlagRequest struct {
	Value bool `json:"value"`
}

// CreateTables handles POST /restaurants/{rid}/tables. Creates count tables
// with contiguous numbers, starting from start_number when given or from the
// next available number otherwise.
func (h *TableHandler) CreateTables(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req createTablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Count < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be >= 1"})
		return
	}
	if req.StartNumber < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_number must be >= 1"})
		return
	}

	tables, err := h.svc.CreateTables(r.Context(), restaurantID, req.Count, req.StartNumber, req.Label)
	if err != nil {
		log.Printf("ERROR: create tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = dbTableToResponse(t)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CreateComandas handles POST /restaurants/{rid}/comandas.
func (h *TableHandler) CreateComandas(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req createTablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Count < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be >= 1"})
		return
	}
	if req.StartNumber < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_number must be >= 1"})
		return
	}

	comandas, err := h.svc.CreateComandas(r.Context(), restaurantID, req.Count, req.StartNumber, req.Label)
	if err != nil {
		log.Printf("ERROR: create comandas: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]comandaResponse, len(comandas))
	for i, c := range comandas {
		resp[i] = comandaResponse{ID: c.ID, Number: c.Number, Label: textPtr(c.Label)}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SetAttention handles PATCH /restaurants/{rid}/tables/{id}/attention.
// A raised flag shows the table as "requesting" on the board.
func (h *TableHandler) SetAttention(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.svc.SetAttention)
}

// SetReserved handles PATCH /restaurants/{rid}/tables/{id}/reserved.
func (h *TableHandler) SetReserved(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.svc.SetReserved)
}

func (h *TableHandler) setFlag(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, store service.TableStore, restaurantID, tableID uuid.UUID, value bool) (database.Table, error)) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req setFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := set(r.Context(), h.store, restaurantID, tableID, req.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: set table flag: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbTableToResponse(table)
	h.notifier.Notify(restaurantID, ws.EventTableUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Occupancy handles GET /restaurants/{rid}/occupancy: the live board of all
// tables and comandas with derived statuses and elapsed times.
func (h *TableHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	snapshot, err := h.svc.Snapshot(r.Context(), h.store, restaurantID)
	if err != nil {
		log.Printf("ERROR: occupancy snapshot: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func dbTableToResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Number:    t.Number,
		Label:     textPtr(t.Label),
		Attention: t.Attention,
		Reserved:  t.Reserved,
	}
}
