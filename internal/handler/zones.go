package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/pedefacil/api/internal/ws"
)

// ZoneStore defines the database methods needed by delivery zone handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ZoneStore interface {
	ListZonesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.DeliveryZone, error)
	CreateZone(ctx context.Context, arg database.CreateZoneParams) (database.DeliveryZone, error)
}

// ZoneHandler handles staff delivery zone endpoints.
type ZoneHandler struct {
	store    ZoneStore
	notifier Notifier
}

func NewZoneHandler(store ZoneStore, notifier Notifier) *ZoneHandler {
	return &ZoneHandler{store: store, notifier: notifier}
}

// RegisterRoutes registers zone endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/zones
func (h *ZoneHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

type createZoneRequest struct {
	Name      string `json:"name"`
	Fee       string `json:"fee"`
	MinOrder  string `json:"min_order"`
	IsVisible bool   `json:"is_visible"`
	SortOrder int32  `json:"sort_order"`
}

type zoneResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Fee       string    `json:"fee"`
	MinOrder  string    `json:"min_order"`
	IsVisible bool      `json:"is_visible"`
	SortOrder int32     `json:"sort_order"`
}

// List handles GET /restaurants/{rid}/zones.
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	zones, err := h.store.ListZonesByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list zones: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]zoneResponse, len(zones))
	for i, z := range zones {
		resp[i] = dbZoneToResponse(z)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /restaurants/{rid}/zones.
func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req createZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	fee, err := decimal.NewFromString(req.Fee)
	if err != nil || fee.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid fee"})
		return
	}

	minOrder := decimal.Zero
	if req.MinOrder != "" {
		minOrder, err = decimal.NewFromString(req.MinOrder)
		if err != nil || minOrder.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_order"})
			return
		}
	}

	zone, err := h.store.CreateZone(r.Context(), database.CreateZoneParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Fee:          pricing.DecimalToNumeric(fee),
		MinOrder:     pricing.DecimalToNumeric(minOrder),
		IsVisible:    req.IsVisible,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		log.Printf("ERROR: create zone: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbZoneToResponse(zone)
	h.notifier.Notify(restaurantID, ws.EventZoneUpdated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

func dbZoneToResponse(z database.DeliveryZone) zoneResponse {
	return zoneResponse{
		ID:        z.ID,
		Name:      z.Name,
		Fee:       numericToString(z.Fee),
		MinOrder:  numericToString(z.MinOrder),
		IsVisible: z.IsVisible,
		SortOrder: z.SortOrder,
	}
}
