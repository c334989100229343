package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/handler"
	"github.com/pedefacil/api/internal/middleware"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	checkoutFn       func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	transitionFn     func(ctx context.Context, restaurantID, orderID uuid.UUID, newStatus string) (*service.TransitionResult, error)
	startPreparingFn func(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.TransitionResult, error)
	closeBillFn      func(ctx context.Context, restaurantID, orderID uuid.UUID, paymentMethod string) (*service.TransitionResult, error)
	addItemsFn       func(ctx context.Context, restaurantID, orderID uuid.UUID, items []service.CheckoutItem) (*service.CheckoutResult, error)
	setItemStatusFn  func(ctx context.Context, restaurantID, orderID, itemID uuid.UUID, status string) (database.Order, error)
}

func (m *mockOrderService) Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	return m.checkoutFn(ctx, req)
}

func (m *mockOrderService) Transition(ctx context.Context, restaurantID, orderID uuid.UUID, newStatus string) (*service.TransitionResult, error) {
	return m.transitionFn(ctx, restaurantID, orderID, newStatus)
}

func (m *mockOrderService) StartPreparing(ctx context.Context, restaurantID, orderID uuid.UUID) (*service.TransitionResult, error) {
	return m.startPreparingFn(ctx, restaurantID, orderID)
}

func (m *mockOrderService) CloseBill(ctx context.Context, restaurantID, orderID uuid.UUID, paymentMethod string) (*service.TransitionResult, error) {
	return m.closeBillFn(ctx, restaurantID, orderID, paymentMethod)
}

func (m *mockOrderService) AddItems(ctx context.Context, restaurantID, orderID uuid.UUID, items []service.CheckoutItem) (*service.CheckoutResult, error) {
	return m.addItemsFn(ctx, restaurantID, orderID, items)
}

func (m *mockOrderService) SetItemStatus(ctx context.Context, restaurantID, orderID, itemID uuid.UUID, status string) (database.Order, error) {
	return m.setItemStatusFn(ctx, restaurantID, orderID, itemID, status)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	getOrderFn            func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	listOrdersFn          func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listActiveOrdersFn    func(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error)
	listOrderItemsFn      func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listOrderItemExtrasFn func(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListActiveOrders(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error) {
	if m.listActiveOrdersFn != nil {
		return m.listActiveOrdersFn(ctx, restaurantID)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsFn != nil {
		return m.listOrderItemsFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderStore) ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error) {
	if m.listOrderItemExtrasFn != nil {
		return m.listOrderItemExtrasFn(ctx, orderItemID)
	}
	return []database.OrderItemExtra{}, nil
}

// --- Router setup ---

func setupOrderRouter(svc *mockOrderService, store *mockOrderStore, notifier *fakeNotifier, guard *fakeGuard) chi.Router {
	if store == nil {
		store = &mockOrderStore{}
	}
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	if guard == nil {
		guard = newFakeGuard()
	}
	h := handler.NewOrderHandler(svc, store, notifier, guard)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/restaurants/{rid}/orders", h.RegisterRoutes)
	return r
}

func testCheckoutResult(restaurantID uuid.UUID) *service.CheckoutResult {
	order := testDBOrder(restaurantID)
	item := testDBOrderItem(order.ID)
	return &service.CheckoutResult{
		Order: order,
		Items: []service.OrderItemResult{{Item: item}},
	}
}

// --- Create ---

func TestOrderCreate_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	productID := uuid.New()

	svc := &mockOrderService{
		checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
			if req.RestaurantID != restaurantID {
				t.Errorf("restaurant_id: got %v, want %v", req.RestaurantID, restaurantID)
			}
			if req.OrderType != enum.OrderTypeDineIn {
				t.Errorf("order_type: got %v, want dine_in", req.OrderType)
			}
			if len(req.Items) != 1 || req.Items[0].ProductID != productID.String() {
				t.Errorf("items: got %+v, want one line with product %s", req.Items, productID)
			}
			return testCheckoutResult(restaurantID), nil
		},
	}
	notifier := &fakeNotifier{}

	router := setupOrderRouter(svc, nil, notifier, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", map[string]interface{}{
		"order_type": "dine_in",
		"items": []map[string]interface{}{
			{"product_id": productID.String(), "quantity": 2},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["order_number"] != float64(1) {
		t.Errorf("order_number: got %v, want 1", resp["order_number"])
	}
	if resp["status"] != "pending" {
		t.Errorf("status: got %v, want pending", resp["status"])
	}
	if resp["total"] != "50.00" {
		t.Errorf("total: got %v, want 50.00", resp["total"])
	}

	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items: got %v, want 1 line", resp["items"])
	}
	item := items[0].(map[string]interface{})
	if item["unit_price"] != "25.00" {
		t.Errorf("item unit_price: got %v, want 25.00", item["unit_price"])
	}

	types := notifier.eventTypes()
	if len(types) != 1 || types[0] != ws.EventOrderCreated {
		t.Errorf("events: got %v, want [%s]", types, ws.EventOrderCreated)
	}
}

func TestOrderCreate_ValidationError(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	svc := &mockOrderService{
		checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
			return nil, service.ErrEmptyItems
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", map[string]interface{}{
		"order_type": "dine_in",
		"items":      []map[string]interface{}{},
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "items are required" {
		t.Errorf("error: got %v, want 'items are required'", resp["error"])
	}
}

func TestOrderCreate_CouponRejected(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	svc := &mockOrderService{
		checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
			return nil, service.ErrCouponRejected
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", map[string]interface{}{
		"order_type":  "pickup",
		"coupon_code": "DEZOFF",
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnprocessableEntity, rr.Body.String())
	}
}

func TestOrderCreate_CouponExhausted(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	svc := &mockOrderService{
		checkoutFn: func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
			return nil, service.ErrCouponExhausted
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders", map[string]interface{}{
		"order_type":  "pickup",
		"coupon_code": "DEZOFF",
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestOrderCreate_NoAuth(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, nil, nil, nil)
	rr := doRequest(t, router, "POST", "/restaurants/"+uuid.New().String()+"/orders", nil, nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestOrderCreate_InvalidRestaurantID(t *testing.T) {
	claims := testClaims(uuid.New())
	router := setupOrderRouter(&mockOrderService{}, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/not-a-uuid/orders", map[string]interface{}{
		"order_type": "dine_in",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// --- List ---

func TestOrderList_DefaultPagination(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if arg.RestaurantID != restaurantID {
				t.Errorf("restaurant_id: got %v, want %v", arg.RestaurantID, restaurantID)
			}
			if arg.Limit != 20 || arg.Offset != 0 {
				t.Errorf("pagination: got limit=%d offset=%d, want 20/0", arg.Limit, arg.Offset)
			}
			if arg.Status.Valid {
				t.Error("status filter should not be set")
			}
			return []database.Order{testDBOrder(restaurantID), testDBOrder(restaurantID)}, nil
		},
	}

	router := setupOrderRouter(nil, store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	orders := resp["orders"].([]interface{})
	if len(orders) != 2 {
		t.Errorf("orders count: got %d, want 2", len(orders))
	}
	if resp["limit"] != float64(20) {
		t.Errorf("limit: got %v, want 20", resp["limit"])
	}
}

func TestOrderList_LimitCappedAt100(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if arg.Limit != 100 {
				t.Errorf("limit: got %d, want 100", arg.Limit)
			}
			return []database.Order{}, nil
		},
	}

	router := setupOrderRouter(nil, store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders?limit=999", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestOrderList_StatusFilter(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if !arg.Status.Valid || arg.Status.String != enum.OrderStatusPreparing {
				t.Errorf("status filter: got %+v, want preparing", arg.Status)
			}
			return []database.Order{}, nil
		},
	}

	router := setupOrderRouter(nil, store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders?status=preparing", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestOrderList_InvalidStatusFilter(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	router := setupOrderRouter(nil, &mockOrderStore{}, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders?status=frying", nil, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestOrderList_ActiveBoard(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	called := false
	store := &mockOrderStore{
		listActiveOrdersFn: func(ctx context.Context, rid uuid.UUID) ([]database.Order, error) {
			called = true
			if rid != restaurantID {
				t.Errorf("restaurant_id: got %v, want %v", rid, restaurantID)
			}
			return []database.Order{testDBOrder(restaurantID)}, nil
		},
	}

	router := setupOrderRouter(nil, store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders?active=true", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !called {
		t.Error("expected the active listing, not the paginated one")
	}
}

// --- Get ---

func TestOrderGet_WithItemsAndExtras(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	order := testDBOrder(restaurantID)
	item := testDBOrderItem(order.ID)
	extra := database.OrderItemExtra{
		ID:            uuid.New(),
		OrderItemID:   item.ID,
		ExtraOptionID: uuid.New(),
		Name:          "Bacon extra",
		UnitPrice:     testNumeric("4.00"),
		Quantity:      1,
	}

	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			if arg.ID != order.ID || arg.RestaurantID != restaurantID {
				t.Errorf("params: got %+v", arg)
			}
			return order, nil
		},
		listOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{item}, nil
		},
		listOrderItemExtrasFn: func(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemExtra, error) {
			return []database.OrderItemExtra{extra}, nil
		},
	}

	router := setupOrderRouter(nil, store, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items count: got %d, want 1", len(items))
	}
	extras := items[0].(map[string]interface{})["extras"].([]interface{})
	if len(extras) != 1 {
		t.Fatalf("extras count: got %d, want 1", len(extras))
	}
	if extras[0].(map[string]interface{})["name"] != "Bacon extra" {
		t.Errorf("extra name: got %v", extras[0].(map[string]interface{})["name"])
	}
}

func TestOrderGet_NotFound(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	router := setupOrderRouter(nil, &mockOrderStore{}, nil, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

// --- Status transitions ---

func TestOrderUpdateStatus_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	order := testDBOrder(restaurantID)
	order.Status = enum.OrderStatusAccepted

	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, rid, oid uuid.UUID, newStatus string) (*service.TransitionResult, error) {
			if newStatus != enum.OrderStatusAccepted {
				t.Errorf("status: got %v, want accepted", newStatus)
			}
			return &service.TransitionResult{Order: order}, nil
		},
	}
	notifier := &fakeNotifier{}

	router := setupOrderRouter(svc, nil, notifier, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String()+"/status",
		map[string]interface{}{"status": "accepted"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["status"] != "accepted" {
		t.Errorf("status: got %v, want accepted", resp["status"])
	}

	types := notifier.eventTypes()
	if len(types) != 1 || types[0] != ws.EventOrderUpdated {
		t.Errorf("events: got %v, want [%s]", types, ws.EventOrderUpdated)
	}
}

func TestOrderUpdateStatus_MissingStatus(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	router := setupOrderRouter(&mockOrderService{}, nil, nil, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/status",
		map[string]interface{}{}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestOrderUpdateStatus_ConflictCarriesAuthoritativeOrder(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	order := testDBOrder(restaurantID)
	order.Status = enum.OrderStatusReady

	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, rid, oid uuid.UUID, newStatus string) (*service.TransitionResult, error) {
			return nil, service.ErrStatusConflict
		},
	}
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			return order, nil
		},
	}

	router := setupOrderRouter(svc, store, nil, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String()+"/status",
		map[string]interface{}{"status": "preparing"}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	authoritative, ok := resp["order"].(map[string]interface{})
	if !ok {
		t.Fatal("conflict response should carry the authoritative order")
	}
	if authoritative["status"] != "ready" {
		t.Errorf("authoritative status: got %v, want ready", authoritative["status"])
	}
}

func TestOrderUpdateStatus_GuardRejectsInflight(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	orderID := uuid.New()

	guard := newFakeGuard()
	guard.reject = true

	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, rid, oid uuid.UUID, newStatus string) (*service.TransitionResult, error) {
			t.Fatal("service should not be called while a transition is in flight")
			return nil, nil
		},
	}

	router := setupOrderRouter(svc, nil, nil, guard)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+orderID.String()+"/status",
		map[string]interface{}{"status": "accepted"}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestOrderUpdateStatus_InvalidStatus(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, rid, oid uuid.UUID, newStatus string) (*service.TransitionResult, error) {
			return nil, service.ErrInvalidStatus
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/status",
		map[string]interface{}{"status": "sideways"}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestOrderStartPreparing(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	order := testDBOrder(restaurantID)
	order.Status = enum.OrderStatusPreparing

	svc := &mockOrderService{
		startPreparingFn: func(ctx context.Context, rid, oid uuid.UUID) (*service.TransitionResult, error) {
			return &service.TransitionResult{Order: order}, nil
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String()+"/start-preparing", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != "preparing" {
		t.Errorf("status: got %v, want preparing", resp["status"])
	}
}

func TestOrderCloseBill_FreesTableAndBroadcasts(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	tableID := uuid.New()

	order := testDBOrder(restaurantID)
	order.Status = enum.OrderStatusDelivered
	order.PaymentStatus = enum.PaymentStatusPaid
	order.TableID = pgtype.UUID{Bytes: tableID, Valid: true}

	svc := &mockOrderService{
		closeBillFn: func(ctx context.Context, rid, oid uuid.UUID, paymentMethod string) (*service.TransitionResult, error) {
			if paymentMethod != enum.PaymentMethodPix {
				t.Errorf("payment_method: got %v, want pix", paymentMethod)
			}
			return &service.TransitionResult{Order: order, TableFreed: true}, nil
		},
	}
	notifier := &fakeNotifier{}

	router := setupOrderRouter(svc, nil, notifier, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String()+"/close-bill",
		map[string]interface{}{"payment_method": "pix"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	types := notifier.eventTypes()
	if len(types) != 2 || types[0] != ws.EventOrderUpdated || types[1] != ws.EventTableUpdated {
		t.Fatalf("events: got %v, want [order.updated table.updated]", types)
	}

	tableEvent := notifier.events[1].Payload.(map[string]string)
	if tableEvent["id"] != tableID.String() || tableEvent["status"] != enum.TableStatusFree {
		t.Errorf("table event: got %v", tableEvent)
	}
}

func TestOrderCloseBill_MissingPaymentMethod(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	router := setupOrderRouter(&mockOrderService{}, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/close-bill",
		map[string]interface{}{}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestOrderCancel_ComandaClosedBroadcast(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	comandaID := uuid.New()

	order := testDBOrder(restaurantID)
	order.Status = enum.OrderStatusCancelled
	order.ComandaID = pgtype.UUID{Bytes: comandaID, Valid: true}

	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, rid, oid uuid.UUID, newStatus string) (*service.TransitionResult, error) {
			if newStatus != enum.OrderStatusCancelled {
				t.Errorf("status: got %v, want cancelled", newStatus)
			}
			return &service.TransitionResult{Order: order, ComandaClosed: true}, nil
		},
	}
	notifier := &fakeNotifier{}

	router := setupOrderRouter(svc, nil, notifier, nil)
	rr := doAuthRequest(t, router, "DELETE", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	types := notifier.eventTypes()
	if len(types) != 2 || types[1] != ws.EventComandaUpdated {
		t.Fatalf("events: got %v, want comanda.updated second", types)
	}
	comandaEvent := notifier.events[1].Payload.(map[string]string)
	if comandaEvent["id"] != comandaID.String() || comandaEvent["status"] != enum.ComandaStatusClosed {
		t.Errorf("comanda event: got %v", comandaEvent)
	}
}

func TestOrderCancel_Terminal(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	order := testDBOrder(restaurantID)
	order.Status = enum.OrderStatusDelivered

	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, rid, oid uuid.UUID, newStatus string) (*service.TransitionResult, error) {
			return nil, service.ErrOrderTerminal
		},
	}
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			return order, nil
		},
	}

	router := setupOrderRouter(svc, store, nil, nil)
	rr := doAuthRequest(t, router, "DELETE", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

// --- AddItems / item status ---

func TestOrderAddItems_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	result := testCheckoutResult(restaurantID)

	svc := &mockOrderService{
		addItemsFn: func(ctx context.Context, rid, oid uuid.UUID, items []service.CheckoutItem) (*service.CheckoutResult, error) {
			if len(items) != 1 {
				t.Errorf("items count: got %d, want 1", len(items))
			}
			return result, nil
		},
	}
	notifier := &fakeNotifier{}

	router := setupOrderRouter(svc, nil, notifier, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders/"+result.Order.ID.String()+"/items",
		map[string]interface{}{
			"items": []map[string]interface{}{
				{"product_id": uuid.New().String(), "quantity": 1},
			},
		}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	types := notifier.eventTypes()
	if len(types) != 1 || types[0] != ws.EventOrderUpdated {
		t.Errorf("events: got %v, want [%s]", types, ws.EventOrderUpdated)
	}
}

func TestOrderAddItems_TerminalOrder(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	svc := &mockOrderService{
		addItemsFn: func(ctx context.Context, rid, oid uuid.UUID, items []service.CheckoutItem) (*service.CheckoutResult, error) {
			return nil, service.ErrOrderTerminal
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/items",
		map[string]interface{}{
			"items": []map[string]interface{}{
				{"product_id": uuid.New().String(), "quantity": 1},
			},
		}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestOrderUpdateItemStatus_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)
	order := testDBOrder(restaurantID)
	itemID := uuid.New()

	svc := &mockOrderService{
		setItemStatusFn: func(ctx context.Context, rid, oid, iid uuid.UUID, status string) (database.Order, error) {
			if iid != itemID {
				t.Errorf("item_id: got %v, want %v", iid, itemID)
			}
			if status != enum.OrderItemStatusCancelled {
				t.Errorf("status: got %v, want cancelled", status)
			}
			return order, nil
		},
	}
	notifier := &fakeNotifier{}

	router := setupOrderRouter(svc, nil, notifier, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+order.ID.String()+"/items/"+itemID.String(),
		map[string]interface{}{"status": "cancelled"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	types := notifier.eventTypes()
	if len(types) != 1 || types[0] != ws.EventOrderItemUpdated {
		t.Errorf("events: got %v, want [%s]", types, ws.EventOrderItemUpdated)
	}
}

func TestOrderUpdateItemStatus_ItemNotFound(t *testing.T) {
	restaurantID := uuid.New()
	claims := testClaims(restaurantID)

	svc := &mockOrderService{
		setItemStatusFn: func(ctx context.Context, rid, oid, iid uuid.UUID, status string) (database.Order, error) {
			return database.Order{}, service.ErrOrderItemNotFound
		},
	}

	router := setupOrderRouter(svc, nil, nil, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/orders/"+uuid.New().String()+"/items/"+uuid.New().String(),
		map[string]interface{}{"status": "delivered"}, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
