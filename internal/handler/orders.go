package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/middleware"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	Transition(ctx context.Context, restaurantID, orderID uuid.UUID, newStatus string) (*service.TransitionResult, error)
	StartPreparing(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.TransitionResult, error)
	CloseBill(ctx context.Context, restaurantID, orderID uuid.UUID, paymentMethod string) (*service.TransitionResult, error)
	AddItems(ctx context.Context, restaurantID, orderID uuid.UUID, reqItems []service.CheckoutItem) (*service.CheckoutResult, error)
	SetItemStatus(ctx context.Context, restaurantID, orderID, itemID uuid.UUID, status string) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListActiveOrders(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error)
}

// Notifier pushes events to connected clients (and peer instances).
// Satisfied by *ws.Hub and *realtime.Notifier.
type Notifier interface {
	Notify(restaurantID uuid.UUID, eventType string, payload any)
}

// TransitionGuard rejects re-entrant transitions on the same order while one
// is still in flight. Satisfied by *realtime.InflightGuard.
type TransitionGuard interface {
	Begin(key string) bool
	End(key string)
}

// OrderHandler handles staff order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	store    OrderStore
	notifier Notifier
	guard    TransitionGuard
}

func NewOrderHandler(svc OrderServicer, store OrderStore, notifier Notifier, guard TransitionGuard) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, notifier: notifier, guard: guard}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/start-preparing", h.StartPreparing)
	r.Post("/{id}/close-bill", h.CloseBill)
	r.Post("/{id}/items", h.AddItems)
	r.Patch("/{id}/items/{itemID}", h.UpdateItemStatus)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType       string                   `json:"order_type"`
	CustomerName    string                   `json:"customer_name"`
	CustomerPhone   string                   `json:"customer_phone"`
	TableID         string                   `json:"table_id"`
	ComandaID       string                   `json:"comanda_id"`
	ZoneID          string                   `json:"zone_id"`
	DeliveryAddress string                   `json:"delivery_address"`
	CouponCode      string                   `json:"coupon_code"`
	RewardID        string                   `json:"reward_id"`
	Tip             string                   `json:"tip"`
	PaymentMethod   string                   `json:"payment_method"`
	Notes           string                   `json:"notes"`
	Items           []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string                    `json:"product_id"`
	Quantity  int32                     `json:"quantity"`
	Notes     string                    `json:"notes"`
	Extras    []createOrderExtraRequest `json:"extras"`
}

type createOrderExtraRequest struct {
	ExtraOptionID string `json:"extra_option_id"`
	Quantity      int32  `json:"quantity"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	RestaurantID    uuid.UUID           `json:"restaurant_id"`
	OrderNumber     int32               `json:"order_number"`
	CustomerName    *string             `json:"customer_name"`
	CustomerPhone   *string             `json:"customer_phone"`
	OrderType       string              `json:"order_type"`
	Status          string              `json:"status"`
	TableID         *string             `json:"table_id"`
	ComandaID       *string             `json:"comanda_id"`
	ZoneID          *string             `json:"zone_id"`
	DeliveryAddress *string             `json:"delivery_address"`
	CouponID        *string             `json:"coupon_id"`
	Subtotal        string              `json:"subtotal"`
	Discount        string              `json:"discount"`
	DeliveryFee     string              `json:"delivery_fee"`
	Tip             string              `json:"tip"`
	Total           string              `json:"total"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	Notes           *string             `json:"notes"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID            `json:"id"`
	ProductID   uuid.UUID            `json:"product_id"`
	ProductName string               `json:"product_name"`
	UnitPrice   string               `json:"unit_price"`
	Quantity    int32                `json:"quantity"`
	Notes       *string              `json:"notes"`
	Status      string               `json:"status"`
	Subtotal    string               `json:"subtotal"`
	Extras      []orderExtraResponse `json:"extras,omitempty"`
}

type orderExtraResponse struct {
	ID            uuid.UUID `json:"id"`
	ExtraOptionID uuid.UUID `json:"extra_option_id"`
	Name          string    `json:"name"`
	UnitPrice     string    `json:"unit_price"`
	Quantity      int32     `json:"quantity"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type closeBillRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type addItemsRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /restaurants/{rid}/orders. Staff-created orders
// (waiter taking a dine-in order at a table, phone orders).
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Checkout(r.Context(), toCheckoutRequest(restaurantID, req))
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	resp := toOrderResponse(result)
	h.notifier.Notify(restaurantID, ws.EventOrderCreated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /restaurants/{rid}/orders.
// ?active=true returns the kitchen board (all non-terminal orders, oldest
// first); otherwise newest first with limit/offset and optional ?status=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	if r.URL.Query().Get("active") == "true" {
		orders, err := h.store.ListActiveOrders(r.Context(), restaurantID)
		if err != nil {
			log.Printf("ERROR: list active orders: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp := make([]orderResponse, len(orders))
		for i, o := range orders {
			resp[i] = dbOrderToResponse(o)
		}
		writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: len(resp), Offset: 0})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		RestaurantID: restaurantID,
		Limit:        int32(limit),
		Offset:       int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !service.IsValidStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.orderDetail(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: load order detail: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
// On conflict the response carries the authoritative record so the client
// can reconcile without a dialog.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	h.transition(w, r, restaurantID, orderID, func(ctx context.Context) (*service.TransitionResult, error) {
		return h.svc.Transition(ctx, restaurantID, orderID, req.Status)
	})
}

// StartPreparing handles POST /restaurants/{rid}/orders/{id}/start-preparing.
// The kitchen one-tap action: valid from pending or accepted.
func (h *OrderHandler) StartPreparing(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	h.transition(w, r, restaurantID, orderID, func(ctx context.Context) (*service.TransitionResult, error) {
		return h.svc.StartPreparing(ctx, restaurantID, orderID)
	})
}

// Cancel handles DELETE /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	h.transition(w, r, restaurantID, orderID, func(ctx context.Context) (*service.TransitionResult, error) {
		return h.svc.Transition(ctx, restaurantID, orderID, enum.OrderStatusCancelled)
	})
}

// CloseBill handles POST /restaurants/{rid}/orders/{id}/close-bill.
// Marks the order paid and delivered in one step, freeing the table or
// closing the comanda when it was the last open order.
func (h *OrderHandler) CloseBill(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	var req closeBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	h.transition(w, r, restaurantID, orderID, func(ctx context.Context) (*service.TransitionResult, error) {
		return h.svc.CloseBill(ctx, restaurantID, orderID, req.PaymentMethod)
	})
}

// AddItems handles POST /restaurants/{rid}/orders/{id}/items. Appends lines
// to an active order and recomputes its amounts.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	var req addItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.AddItems(r.Context(), restaurantID, orderID, toCheckoutItems(req.Items))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		if errors.Is(err, service.ErrOrderTerminal) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		h.writeCheckoutError(w, err)
		return
	}

	resp := toOrderResponse(result)
	h.notifier.Notify(restaurantID, ws.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateItemStatus handles PATCH /restaurants/{rid}/orders/{id}/items/{itemID}.
// Per-line delivered/cancelled markers; cancelling a line reprices the order.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	restaurantID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.SetItemStatus(r.Context(), restaurantID, orderID, itemID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order item not found"})
		case errors.Is(err, service.ErrOrderTerminal):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update order item status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := dbOrderToResponse(order)
	h.notifier.Notify(restaurantID, ws.EventOrderItemUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) parseOrderPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, uuid.Nil, false
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, uuid.Nil, false
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}

	return restaurantID, orderID, true
}

// transition runs a status change behind the in-flight guard, maps service
// errors, and broadcasts the result plus any table/comanda side effects.
func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, restaurantID, orderID uuid.UUID, fn func(ctx context.Context) (*service.TransitionResult, error)) {
	key := "transition:" + orderID.String()
	if !h.guard.Begin(key) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a transition for this order is already in flight"})
		return
	}
	defer h.guard.End(key)

	result, err := fn(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidPayment):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrStatusConflict), errors.Is(err, service.ErrOrderTerminal):
			h.writeConflict(w, r, restaurantID, orderID, err)
		default:
			log.Printf("ERROR: order transition: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := dbOrderToResponse(result.Order)
	h.notifier.Notify(restaurantID, ws.EventOrderUpdated, resp)
	if result.TableFreed && result.Order.TableID.Valid {
		h.notifier.Notify(restaurantID, ws.EventTableUpdated, map[string]string{
			"id":     uuid.UUID(result.Order.TableID.Bytes).String(),
			"status": enum.TableStatusFree,
		})
	}
	if result.ComandaClosed && result.Order.ComandaID.Valid {
		h.notifier.Notify(restaurantID, ws.EventComandaUpdated, map[string]string{
			"id":     uuid.UUID(result.Order.ComandaID.Bytes).String(),
			"status": enum.ComandaStatusClosed,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeConflict answers 409 with the authoritative record attached, so the
// client reconciles its view instead of showing an error dialog.
func (h *OrderHandler) writeConflict(w http.ResponseWriter, r *http.Request, restaurantID, orderID uuid.UUID, cause error) {
	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": cause.Error()})
		return
	}
	writeJSON(w, http.StatusConflict, map[string]any{
		"error": cause.Error(),
		"order": dbOrderToResponse(order),
	})
}

func (h *OrderHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case isCheckoutValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrCouponRejected), errors.Is(err, service.ErrRewardRejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrCouponExhausted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: checkout: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isCheckoutValidationError reports whether err is a known service error
// that should map to 400 Bad Request.
func isCheckoutValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrExtraNotFound) ||
		errors.Is(err, service.ErrExtraNotAllowed) ||
		errors.Is(err, service.ErrExtraRequired) ||
		errors.Is(err, service.ErrExtraLimit) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidExtraID) ||
		errors.Is(err, service.ErrInvalidPayment) ||
		errors.Is(err, service.ErrInvalidTip) ||
		errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrComandaNotFound) ||
		errors.Is(err, service.ErrZoneNotFound) ||
		errors.Is(err, service.ErrDeliveryAddress) ||
		errors.Is(err, service.ErrZoneRequired) ||
		errors.Is(err, service.ErrBelowZoneMinimum) ||
		errors.Is(err, service.ErrDiscountConflict)
}

func toCheckoutRequest(restaurantID uuid.UUID, req createOrderRequest) service.CheckoutRequest {
	return service.CheckoutRequest{
		RestaurantID:    restaurantID,
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
		Items:           toCheckoutItems(req.Items),
	}
}

func toCheckoutItems(items []createOrderItemRequest) []service.CheckoutItem {
	out := make([]service.CheckoutItem, len(items))
	for i, item := range items {
		extras := make([]service.CheckoutExtra, len(item.Extras))
		for j, e := range item.Extras {
			extras[j] = service.CheckoutExtra{OptionID: e.ExtraOptionID, Quantity: e.Quantity}
		}
		out[i] = service.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
			Extras:    extras,
		}
	}
	return out
}

func (h *OrderHandler) orderDetail(ctx context.Context, order database.Order) (orderResponse, error) {
	items, err := h.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return orderResponse{}, err
	}

	itemResponses := make([]orderItemResponse, len(items))
	for i, item := range items {
		extras, err := h.store.ListOrderItemExtrasByItem(ctx, item.ID)
		if err != nil {
			return orderResponse{}, err
		}
		itemResponses[i] = dbOrderItemToResponse(item, extras)
	}

	resp := dbOrderToResponse(order)
	resp.Items = itemResponses
	return resp, nil
}

func toOrderResponse(result *service.CheckoutResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, ir := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(ir.Item, ir.Extras)
	}
	return resp
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		RestaurantID:    o.RestaurantID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    textPtr(o.CustomerName),
		CustomerPhone:   textPtr(o.CustomerPhone),
		OrderType:       o.OrderType,
		Status:          o.Status,
		TableID:         uuidPtr(o.TableID),
		ComandaID:       uuidPtr(o.ComandaID),
		ZoneID:          uuidPtr(o.ZoneID),
		DeliveryAddress: textPtr(o.DeliveryAddress),
		CouponID:        uuidPtr(o.CouponID),
		Subtotal:        numericToString(o.Subtotal),
		Discount:        numericToString(o.Discount),
		DeliveryFee:     numericToString(o.DeliveryFee),
		Tip:             numericToString(o.Tip),
		Total:           numericToString(o.Total),
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Notes:           textPtr(o.Notes),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func dbOrderItemToResponse(item database.OrderItem, extras []database.OrderItemExtra) orderItemResponse {
	resp := orderItemResponse{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		UnitPrice:   numericToString(item.UnitPrice),
		Quantity:    item.Quantity,
		Notes:       textPtr(item.Notes),
		Status:      item.Status,
		Subtotal:    numericToString(item.Subtotal),
	}
	resp.Extras = make([]orderExtraResponse, len(extras))
	for j, e := range extras {
		resp.Extras[j] = orderExtraResponse{
			ID:            e.ID,
			ExtraOptionID: e.ExtraOptionID,
			Name:          e.Name,
			UnitPrice:     numericToString(e.UnitPrice),
			Quantity:      e.Quantity,
		}
	}
	return resp
}
