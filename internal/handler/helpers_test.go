package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/pedefacil/api/internal/auth"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/pricing"
)

const testJWTSecret = "test-secret-for-handlers"

func testNumeric(s string) pgtype.Numeric {
	return pricing.DecimalToNumeric(decimal.RequireFromString(s))
}

func testClaims(restaurantID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		UserID:       uuid.New(),
		RestaurantID: restaurantID,
		Role:         enum.UserRoleWaiter,
	}
}

// fakeNotifier records broadcasts instead of pushing to a hub.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
}

type notifiedEvent struct {
	RestaurantID uuid.UUID
	EventType    string
	Payload      any
}

func (n *fakeNotifier) Notify(restaurantID uuid.UUID, eventType string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifiedEvent{RestaurantID: restaurantID, EventType: eventType, Payload: payload})
}

func (n *fakeNotifier) eventTypes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]string, len(n.events))
	for i, e := range n.events {
		types[i] = e.EventType
	}
	return types
}

// fakeGuard admits transitions unless told otherwise.
type fakeGuard struct {
	mu     sync.Mutex
	held   map[string]bool
	reject bool
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: make(map[string]bool)}
}

func (g *fakeGuard) Begin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reject || g.held[key] {
		return false
	}
	g.held[key] = true
	return true
}

func (g *fakeGuard) End(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.RestaurantID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return doRequest(t, router, method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeListResponse(t *testing.T, rr *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var resp []interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return resp
}

// --- Shared test data builders ---

func testDBOrder(restaurantID uuid.UUID) database.Order {
	now := time.Now()
	return database.Order{
		ID:            uuid.New(),
		RestaurantID:  restaurantID,
		OrderNumber:   1,
		OrderType:     enum.OrderTypeDineIn,
		Status:        enum.OrderStatusPending,
		Subtotal:      testNumeric("50.00"),
		Discount:      testNumeric("0.00"),
		DeliveryFee:   testNumeric("0.00"),
		Tip:           testNumeric("0.00"),
		Total:         testNumeric("50.00"),
		PaymentMethod: enum.PaymentMethodCash,
		PaymentStatus: enum.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testDBOrderItem(orderID uuid.UUID) database.OrderItem {
	return database.OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   uuid.New(),
		ProductName: "X-Burger",
		UnitPrice:   testNumeric("25.00"),
		Quantity:    2,
		Status:      enum.OrderItemStatusActive,
		Subtotal:    testNumeric("50.00"),
		CreatedAt:   time.Now(),
	}
}

func testDBProduct(restaurantID uuid.UUID) database.Product {
	now := time.Now()
	return database.Product{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Name:         "X-Burger",
		Price:        testNumeric("25.00"),
		IsActive:     true,
		IsVisible:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testDBRestaurant(slug string) database.Restaurant {
	return database.Restaurant{
		ID:          uuid.New(),
		Slug:        slug,
		Name:        "Cantina da Praça",
		ChargeMode:  enum.ChargeModeFixed,
		DeliveryFee: testNumeric("8.00"),
		CreatedAt:   time.Now(),
	}
}
