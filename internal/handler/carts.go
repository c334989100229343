package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pedefacil/api/internal/cart"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

// sessionHeader carries the anonymous cart session id on public endpoints.
const sessionHeader = "X-Session-ID"

// CartStore defines the database methods needed by public cart endpoints.
// Satisfied by *database.Queries; narrow interface for testability.
type CartStore interface {
	GetRestaurantBySlug(ctx context.Context, slug string) (database.Restaurant, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	GetExtraOptionForOrder(ctx context.Context, id uuid.UUID) (database.ExtraOptionForOrderRow, error)
	ListProductExtraGroupIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error)
}

// CartHandler handles the public session-scoped cart and its checkout.
type CartHandler struct {
	store    CartStore
	carts    cart.Store
	svc      OrderServicer
	notifier Notifier
}

func NewCartHandler(store CartStore, carts cart.Store, svc OrderServicer, notifier Notifier) *CartHandler {
	return &CartHandler{store: store, carts: carts, svc: svc, notifier: notifier}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Expected to be mounted inside a public restaurant subrouter: /r/{slug}
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cart", h.Get)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items/{index}", h.UpdateItem)
	r.Delete("/cart/items/{index}", h.RemoveItem)
	r.Delete("/cart", h.Clear)
	r.Post("/checkout", h.Checkout)
}

// --- Request / Response types ---

type addCartItemRequest struct {
	ProductID string             `json:"product_id"`
	Quantity  int32              `json:"quantity"`
	Notes     string             `json:"notes"`
	Extras    []cartExtraRequest `json:"extras"`
}

type cartExtraRequest struct {
	ExtraOptionID string `json:"extra_option_id"`
	Quantity      int32  `json:"quantity"`
}

// updateCartItemRequest mutates one line. Nil fields are left unchanged;
// quantity <= 0 removes the line.
type updateCartItemRequest struct {
	Quantity *int32              `json:"quantity"`
	Notes    *string             `json:"notes"`
	Extras   *[]cartExtraRequest `json:"extras"`
}

type cartResponse struct {
	Items      []cartLineResponse `json:"items"`
	TotalItems int32              `json:"total_items"`
	TotalPrice string             `json:"total_price"`
}

type cartLineResponse struct {
	Index       int                 `json:"index"`
	ProductID   uuid.UUID           `json:"product_id"`
	ProductName string              `json:"product_name"`
	UnitPrice   string              `json:"unit_price"`
	Quantity    int32               `json:"quantity"`
	Notes       string              `json:"notes,omitempty"`
	Extras      []cartExtraResponse `json:"extras,omitempty"`
	LineTotal   string              `json:"line_total"`
}

type cartExtraResponse struct {
	ExtraOptionID uuid.UUID `json:"extra_option_id"`
	Name          string    `json:"name"`
	UnitPrice     string    `json:"unit_price"`
	Quantity      int32     `json:"quantity"`
}

// publicCheckoutRequest is the public checkout body. Items come from the
// session cart, never from the request.
type publicCheckoutRequest struct {
	OrderType       string `json:"order_type"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	TableID         string `json:"table_id"`
	ComandaID       string `json:"comanda_id"`
	ZoneID          string `json:"zone_id"`
	DeliveryAddress string `json:"delivery_address"`
	CouponCode      string `json:"coupon_code"`
	RewardID        string `json:"reward_id"`
	Tip             string `json:"tip"`
	PaymentMethod   string `json:"payment_method"`
	Notes           string `json:"notes"`
}

// --- Handlers ---

// Get handles GET /r/{slug}/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(engine))
}

// AddItem handles POST /r/{slug}/cart/items. The product and its extras are
// re-read from the catalog so the snapshotted prices are authoritative.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	product, err := h.store.GetProductForOrder(r.Context(), database.GetProductForOrderParams{
		ID:           productID,
		RestaurantID: restaurant.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not available"})
			return
		}
		log.Printf("ERROR: get product for cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	extras, err := h.resolveExtras(r.Context(), productID, req.Extras)
	if err != nil {
		if errors.Is(err, service.ErrExtraNotFound) || errors.Is(err, service.ErrExtraNotAllowed) || errors.Is(err, service.ErrInvalidExtraID) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: resolve cart extras: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	line := cart.LineItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   pricing.NumericToDecimal(product.Price),
		Quantity:    req.Quantity,
		Extras:      extras,
		Notes:       req.Notes,
	}
	if err := engine.AddItem(line); err != nil {
		log.Printf("ERROR: add cart item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(engine))
}

// UpdateItem handles PATCH /r/{slug}/cart/items/{index}.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line index"})
		return
	}

	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Extras != nil {
		items := engine.Items()
		if index < 0 || index >= len(items) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart line not found"})
			return
		}
		extras, err := h.resolveExtras(r.Context(), items[index].ProductID, *req.Extras)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := engine.UpdateExtras(index, extras); err != nil {
			h.writeCartMutationError(w, err)
			return
		}
	}
	if req.Notes != nil {
		if err := engine.UpdateNotes(index, *req.Notes); err != nil {
			h.writeCartMutationError(w, err)
			return
		}
	}
	if req.Quantity != nil {
		if err := engine.UpdateQuantity(index, *req.Quantity); err != nil {
			h.writeCartMutationError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toCartResponse(engine))
}

// RemoveItem handles DELETE /r/{slug}/cart/items/{index}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line index"})
		return
	}

	if err := engine.Remove(index); err != nil {
		h.writeCartMutationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(engine))
}

// Clear handles DELETE /r/{slug}/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	if err := engine.Clear(); err != nil {
		log.Printf("ERROR: clear cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(engine))
}

// Checkout handles POST /r/{slug}/checkout. Converts the session cart into
// an order, clears the cart on success, and pushes order.created to the
// restaurant dashboard.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	restaurant, ok := h.restaurant(w, r)
	if !ok {
		return
	}
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req publicCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	lines := engine.Items()
	if len(lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
		return
	}

	items := make([]service.CheckoutItem, len(lines))
	for i, line := range lines {
		extras := make([]service.CheckoutExtra, len(line.Extras))
		for j, e := range line.Extras {
			extras[j] = service.CheckoutExtra{OptionID: e.OptionID.String(), Quantity: e.Quantity}
		}
		items[i] = service.CheckoutItem{
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity,
			Notes:     line.Notes,
			Extras:    extras,
		}
	}

	result, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		RestaurantID:    restaurant.ID,
		OrderType:       req.OrderType,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		TableID:         req.TableID,
		ComandaID:       req.ComandaID,
		ZoneID:          req.ZoneID,
		DeliveryAddress: req.DeliveryAddress,
		CouponCode:      req.CouponCode,
		RewardID:        req.RewardID,
		Tip:             req.Tip,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		Items:           items,
	})
	if err != nil {
		switch {
		case isCheckoutValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrCouponRejected), errors.Is(err, service.ErrRewardRejected):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrCouponExhausted):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: public checkout: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	// Order placed; the cart is spent. A failed clear only affects the
	// session, not the order.
	if err := engine.Clear(); err != nil {
		log.Printf("ERROR: clear cart after checkout: %v", err)
	}

	resp := toOrderResponse(result)
	h.notifier.Notify(restaurant.ID, ws.EventOrderCreated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// --- Helpers ---

func (h *CartHandler) restaurant(w http.ResponseWriter, r *http.Request) (database.Restaurant, bool) {
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

func (h *CartHandler) engine(w http.ResponseWriter, r *http.Request) (*cart.Engine, bool) {
	session := r.Header.Get(sessionHeader)
	if session == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": sessionHeader + " header is required"})
		return nil, false
	}

	key := cart.Key{RestaurantSlug: chi.URLParam(r, "slug"), SessionID: session}
	engine, err := cart.NewEngine(key, h.carts, nil)
	if err != nil {
		log.Printf("ERROR: restore cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil, false
	}
	return engine, true
}

func (h *CartHandler) resolveExtras(ctx context.Context, productID uuid.UUID, reqs []cartExtraRequest) ([]cart.ExtraSelection, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	allowedGroups, err := h.store.ListProductExtraGroupIDs(ctx, productID)
	if err != nil {
		return nil, err
	}

	extras := make([]cart.ExtraSelection, len(reqs))
	for i, req := range reqs {
		optionID, err := uuid.Parse(req.ExtraOptionID)
		if err != nil {
			return nil, service.ErrInvalidExtraID
		}
		option, err := h.store.GetExtraOptionForOrder(ctx, optionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, service.ErrExtraNotFound
			}
			return nil, err
		}
		if !containsGroup(allowedGroups, option.GroupID) {
			return nil, service.ErrExtraNotAllowed
		}
		qty := req.Quantity
		if qty < 1 {
			qty = 1
		}
		extras[i] = cart.ExtraSelection{
			OptionID: option.ID,
			Name:     option.Name,
			Price:    pricing.NumericToDecimal(option.Price),
			Quantity: qty,
		}
	}
	return extras, nil
}

func (h *CartHandler) writeCartMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, cart.ErrIndexOutOfRange) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart line not found"})
		return
	}
	log.Printf("ERROR: mutate cart: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func containsGroup(ids []uuid.UUID, id uuid.UUID) bool {
	for _, g := range ids {
		if g == id {
			return true
		}
	}
	return false
}

func toCartResponse(engine *cart.Engine) cartResponse {
	lines := engine.Items()
	resp := cartResponse{
		Items:      make([]cartLineResponse, len(lines)),
		TotalItems: engine.TotalItems(),
		TotalPrice: engine.TotalPrice().StringFixed(2),
	}
	for i, line := range lines {
		extras := make([]cartExtraResponse, len(line.Extras))
		for j, e := range line.Extras {
			extras[j] = cartExtraResponse{
				ExtraOptionID: e.OptionID,
				Name:          e.Name,
				UnitPrice:     e.Price.StringFixed(2),
				Quantity:      e.Quantity,
			}
		}
		resp.Items[i] = cartLineResponse{
			Index:       i,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Quantity:    line.Quantity,
			Notes:       line.Notes,
			Extras:      extras,
			LineTotal:   line.Total().StringFixed(2),
		}
	}
	return resp
}
