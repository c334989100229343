package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pedefacil/api/internal/database"
)

// LoyaltyStore defines the database methods needed by staff loyalty handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type LoyaltyStore interface {
	GetLoyaltyAccount(ctx context.Context, arg database.GetLoyaltyAccountParams) (database.LoyaltyAccount, error)
	ListLoyaltyRewardsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.LoyaltyReward, error)
}

// LoyaltyHandler handles staff loyalty lookups. Accrual and redemption are
// side effects of the order lifecycle, not endpoints.
type LoyaltyHandler struct {
	store LoyaltyStore
}

func NewLoyaltyHandler(store LoyaltyStore) *LoyaltyHandler {
	return &LoyaltyHandler{store: store}
}

// RegisterRoutes registers loyalty endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}
func (h *LoyaltyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/loyalty/{phone}", h.Account)
	r.Get("/rewards", h.Rewards)
}

// Account handles GET /restaurants/{rid}/loyalty/{phone}.
func (h *LoyaltyHandler) Account(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	phone := chi.URLParam(r, "phone")
	account, err := h.store.GetLoyaltyAccount(r.Context(), database.GetLoyaltyAccountParams{
		RestaurantID:  restaurantID,
		CustomerPhone: phone,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "loyalty account not found"})
			return
		}
		log.Printf("ERROR: get loyalty account: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, loyaltyAccountResponse{
		CustomerPhone:  account.CustomerPhone,
		CustomerName:   textPtr(account.CustomerName),
		TotalPoints:    account.TotalPoints,
		LifetimePoints: account.LifetimePoints,
	})
}

// Rewards handles GET /restaurants/{rid}/rewards. Staff see inactive rewards
// too, unlike the public listing.
func (h *LoyaltyHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	rewards, err := h.store.ListLoyaltyRewardsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list rewards: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]rewardResponse, len(rewards))
	for i, rw := range rewards {
		resp[i] = rewardResponse{
			ID:             rw.ID,
			Name:           rw.Name,
			PointsRequired: rw.PointsRequired,
			DiscountType:   rw.DiscountType,
			DiscountValue:  numericToString(rw.DiscountValue),
			MinOrderValue:  numericToString(rw.MinOrderValue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
