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
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/service"
)

// MenuStore defines the database methods needed by public read endpoints.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	GetRestaurantBySlug(ctx context.Context, slug string) (database.Restaurant, error)
	ListProductsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Product, error)
	ListZonesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.DeliveryZone, error)
	ListCouponsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Coupon, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error)
	GetLoyaltyAccount(ctx context.Context, arg database.GetLoyaltyAccountParams) (database.LoyaltyAccount, error)
	ListLoyaltyRewardsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.LoyaltyReward, error)
}

// CouponValidator validates a coupon code against an order total.
// Satisfied by *service.DiscountService.
type CouponValidator interface {
	ValidateCoupon(ctx context.Context, restaurantID uuid.UUID, code string, orderTotal decimal.Decimal) (service.CouponResult, error)
}

// MenuHandler handles the public storefront: menu, coupon validation, order
// tracking, and loyalty lookups.
type MenuHandler struct {
	store     MenuStore
	discounts CouponValidator
}

func NewMenuHandler(store MenuStore, discounts CouponValidator) *MenuHandler {
	return &MenuHandler{store: store, discounts: discounts}
}

// RegisterRoutes registers public endpoints on the given Chi router.
// Expected to be mounted inside a public restaurant subrouter: /r/{slug}
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Post("/coupons/validate", h.ValidateCoupon)
	r.Get("/orders/{id}", h.TrackOrder)
	r.Get("/loyalty/{phone}", h.LoyaltyAccount)
	r.Get("/rewards", h.Rewards)
}

// --- Response types ---

type menuResponse struct {
	Restaurant restaurantResponse   `json:"restaurant"`
	Products   []productResponse    `json:"products"`
	Zones      []zoneResponse       `json:"zones"`
	Coupons    []menuCouponResponse `json:"coupons"`
}

type restaurantResponse struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	ChargeMode  string    `json:"charge_mode"`
	DeliveryFee string    `json:"delivery_fee"`
}

// menuCouponResponse is the visible-coupon teaser on the menu: code and terms
// only, no usage counters.
type menuCouponResponse struct {
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue string  `json:"discount_value"`
	MinOrderValue string  `json:"min_order_value"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
}

type validateCouponRequest struct {
	Code       string `json:"code"`
	OrderTotal string `json:"order_total"`
}

type validateCouponResponse struct {
	Valid         bool    `json:"valid"`
	CouponID      *string `json:"coupon_id,omitempty"`
	DiscountType  string  `json:"discount_type,omitempty"`
	DiscountValue string  `json:"discount_value,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

type loyaltyAccountResponse struct {
	CustomerPhone  string  `json:"customer_phone"`
	CustomerName   *string `json:"customer_name"`
	TotalPoints    int32   `json:"total_points"`
	LifetimePoints int32   `json:"lifetime_points"`
}

type rewardResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	PointsRequired int32     `json:"points_required"`
	DiscountType   string    `json:"discount_type"`
	DiscountValue  string    `json:"discount_value"`
	MinOrderValue  string    `json:"min_order_value"`
}

// --- Handlers ---

// Menu handles GET /r/{slug}/menu: the restaurant, its visible products,
// delivery zones, and advertised coupons in one payload.
func (h *MenuHandler) Menu(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}

	products, err := h.store.ListProductsByRestaurant(r.Context(), restaurant.ID)
	if err != nil {
		log.Printf("ERROR: list products for menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	zones, err := h.store.ListZonesByRestaurant(r.Context(), restaurant.ID)
	if err != nil {
		log.Printf("ERROR: list zones for menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	coupons, err := h.store.ListCouponsByRestaurant(r.Context(), restaurant.ID)
	if err != nil {
		log.Printf("ERROR: list coupons for menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := menuResponse{
		Restaurant: restaurantResponse{
			ID:          restaurant.ID,
			Slug:        restaurant.Slug,
			Name:        restaurant.Name,
			ChargeMode:  restaurant.ChargeMode,
			DeliveryFee: numericToString(restaurant.DeliveryFee),
		},
		Products: make([]productResponse, 0, len(products)),
		Zones:    make([]zoneResponse, 0, len(zones)),
		Coupons:  make([]menuCouponResponse, 0, len(coupons)),
	}

	for _, p := range products {
		if !p.IsActive || !p.IsVisible {
			continue
		}
		resp.Products = append(resp.Products, dbProductToResponse(p))
	}
	for _, z := range zones {
		if !z.IsVisible {
			continue
		}
		resp.Zones = append(resp.Zones, dbZoneToResponse(z))
	}
	for _, c := range coupons {
		if !c.IsActive || !c.IsVisible {
			continue
		}
		teaser := menuCouponResponse{
			Code:          c.Code,
			DiscountType:  c.DiscountType,
			DiscountValue: numericToString(c.DiscountValue),
			MinOrderValue: numericToString(c.MinOrderValue),
		}
		if c.ExpiresAt.Valid {
			s := c.ExpiresAt.Time.Format(time.RFC3339)
			teaser.ExpiresAt = &s
		}
		resp.Coupons = append(resp.Coupons, teaser)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ValidateCoupon handles POST /r/{slug}/coupons/validate. Rule failures are
// a 200 with valid=false and a message; only infrastructure failures are 5xx.
func (h *MenuHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}

	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	orderTotal := decimal.Zero
	if req.OrderTotal != "" {
		var err error
		orderTotal, err = decimal.NewFromString(req.OrderTotal)
		if err != nil || orderTotal.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_total"})
			return
		}
	}

	result, err := h.discounts.ValidateCoupon(r.Context(), restaurant.ID, req.Code, orderTotal)
	if err != nil {
		log.Printf("ERROR: validate coupon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := validateCouponResponse{
		Valid:        result.Valid,
		ErrorMessage: result.ErrorMessage,
	}
	if result.Valid {
		id := result.CouponID.String()
		resp.CouponID = &id
		resp.DiscountType = result.DiscountType
		resp.DiscountValue = result.DiscountValue.StringFixed(2)
	}

	writeJSON(w, http.StatusOK, resp)
}

// TrackOrder handles GET /r/{slug}/orders/{id}: the customer-facing status
// and receipt view of an order.
func (h *MenuHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, RestaurantID: restaurant.ID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for tracking: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items for tracking: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemResponses := make([]orderItemResponse, len(items))
	for i, item := range items {
		extras, err := h.store.ListOrderItemExtrasByItem(r.Context(), item.ID)
		if err != nil {
			log.Printf("ERROR: list order item extras for tracking: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		itemResponses[i] = dbOrderItemToResponse(item, extras)
	}

	resp := dbOrderToResponse(order)
	resp.Items = itemResponses
	writeJSON(w, http.StatusOK, resp)
}

// LoyaltyAccount handles GET /r/{slug}/loyalty/{phone}.
func (h *MenuHandler) LoyaltyAccount(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}

	phone := chi.URLParam(r, "phone")
	account, err := h.store.GetLoyaltyAccount(r.Context(), database.GetLoyaltyAccountParams{
		RestaurantID:  restaurant.ID,
		CustomerPhone: phone,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No purchases yet: a zero-balance account, not an error.
			writeJSON(w, http.StatusOK, loyaltyAccountResponse{CustomerPhone: phone})
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

// Rewards handles GET /r/{slug}/rewards.
func (h *MenuHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}

	rewards, err := h.store.ListLoyaltyRewardsByRestaurant(r.Context(), restaurant.ID)
	if err != nil {
		log.Printf("ERROR: list rewards: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		if !rw.IsActive {
			continue
		}
		resp = append(resp, rewardResponse{
			ID:             rw.ID,
			Name:           rw.Name,
			PointsRequired: rw.PointsRequired,
			DiscountType:   rw.DiscountType,
			DiscountValue:  numericToString(rw.DiscountValue),
			MinOrderValue:  numericToString(rw.MinOrderValue),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *MenuHandler) restaurant(w http.ResponseWriter, r *http.Request) (database.Restaurant, bool) {
	slug := chi.URLParam(r, "slug")
	restaurant, err := h.store.GetRestaurantBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return database.Restaurant{}, false
		}
		log.Printf("ERROR: get restaurant by slug: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Restaurant{}, false
	}
	return restaurant, true
}
