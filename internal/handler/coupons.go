package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/pedefacil/api/internal/ws"
)

// CouponStore defines the database methods needed by coupon handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CouponStore interface {
	ListCouponsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Coupon, error)
	CreateCoupon(ctx context.Context, arg database.CreateCouponParams) (database.Coupon, error)
}

// CouponHandler handles staff coupon endpoints.
type CouponHandler struct {
	store    CouponStore
	notifier Notifier
}

func NewCouponHandler(store CouponStore, notifier Notifier) *CouponHandler {
	return &CouponHandler{store: store, notifier: notifier}
}

// RegisterRoutes registers coupon endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/coupons
func (h *CouponHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

type createCouponRequest struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	MinOrderValue string `json:"min_order_value"`
	MaxUses       *int32 `json:"max_uses"`
	ExpiresAt     string `json:"expires_at"`
	IsVisible     bool   `json:"is_visible"`
}

type couponResponse struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue string     `json:"discount_value"`
	MinOrderValue string     `json:"min_order_value"`
	MaxUses       *int32     `json:"max_uses"`
	UsedCount     int32      `json:"used_count"`
	ExpiresAt     *time.Time `json:"expires_at"`
	IsActive      bool       `json:"is_active"`
	IsVisible     bool       `json:"is_visible"`
	CreatedAt     time.Time  `json:"created_at"`
}

// List handles GET /restaurants/{rid}/coupons.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	coupons, err := h.store.ListCouponsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list coupons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		resp[i] = dbCouponToResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /restaurants/{rid}/coupons. Codes are unique per
// restaurant case-insensitively; a duplicate is a 409.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}
	if req.DiscountType != enum.DiscountTypePercent && req.DiscountType != enum.DiscountTypeFixed {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount_type"})
		return
	}

	value, err := decimal.NewFromString(req.DiscountValue)
	if err != nil || !value.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount_value"})
		return
	}
	if req.DiscountType == enum.DiscountTypePercent && value.GreaterThan(decimal.NewFromInt(100)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "percent discount cannot exceed 100"})
		return
	}

	minOrder := decimal.Zero
	if req.MinOrderValue != "" {
		minOrder, err = decimal.NewFromString(req.MinOrderValue)
		if err != nil || minOrder.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_order_value"})
			return
		}
	}

	params := database.CreateCouponParams{
		RestaurantID:  restaurantID,
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: pricing.DecimalToNumeric(value),
		MinOrderValue: pricing.DecimalToNumeric(minOrder),
		IsActive:      true,
		IsVisible:     req.IsVisible,
	}
	if req.MaxUses != nil {
		if *req.MaxUses <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_uses must be > 0"})
			return
		}
		params.MaxUses = pgtype.Int4{Int32: *req.MaxUses, Valid: true}
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expires_at, use RFC 3339"})
			return
		}
		params.ExpiresAt = pgtype.Timestamptz{Time: t, Valid: true}
	}

	coupon, err := h.store.CreateCoupon(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "coupon code already exists"})
			return
		}
		log.Printf("ERROR: create coupon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbCouponToResponse(coupon)
	h.notifier.Notify(restaurantID, ws.EventCouponUpdated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

func dbCouponToResponse(c database.Coupon) couponResponse {
	resp := couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: numericToString(c.DiscountValue),
		MinOrderValue: numericToString(c.MinOrderValue),
		UsedCount:     c.UsedCount,
		IsActive:      c.IsActive,
		IsVisible:     c.IsVisible,
		CreatedAt:     c.CreatedAt,
	}
	if c.MaxUses.Valid {
		v := c.MaxUses.Int32
		resp.MaxUses = &v
	}
	if c.ExpiresAt.Valid {
		t := c.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	return resp
}
