package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/handler"
	"github.com/pedefacil/api/internal/middleware"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/pedefacil/api/internal/ws"
)

type mockProductStore struct {
	listProductsFn      func(ctx context.Context, restaurantID uuid.UUID) ([]database.Product, error)
	createProductFn     func(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	setProductSoldOutFn func(ctx context.Context, arg database.SetProductSoldOutParams) (database.Product, error)
}

func (m *mockProductStore) ListProductsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Product, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx, restaurantID)
	}
	return nil, nil
}

func (m *mockProductStore) CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
	return m.createProductFn(ctx, arg)
}

func (m *mockProductStore) SetProductSoldOut(ctx context.Context, arg database.SetProductSoldOutParams) (database.Product, error) {
	if m.setProductSoldOutFn != nil {
		return m.setProductSoldOutFn(ctx, arg)
	}
	return database.Product{}, pgx.ErrNoRows
}

func setupProductRouter(store *mockProductStore, notifier *fakeNotifier) chi.Router {
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	h := handler.NewProductHandler(store, notifier)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/restaurants/{rid}/products", h.RegisterRoutes)
	return r
}

func TestProductList_IncludesHiddenAndSoldOut(t *testing.T) {
	restaurantID := uuid.New()

	onMenu := testDBProduct(restaurantID)
	hidden := testDBProduct(restaurantID)
	hidden.Name = "Especial do chef"
	hidden.IsVisible = false
	soldOut := testDBProduct(restaurantID)
	soldOut.Name = "Feijoada"
	soldOut.IsSoldOut = true

	store := &mockProductStore{
		listProductsFn: func(ctx context.Context, rid uuid.UUID) ([]database.Product, error) {
			if rid != restaurantID {
				t.Errorf("restaurant id: got %v, want %v", rid, restaurantID)
			}
			return []database.Product{onMenu, hidden, soldOut}, nil
		},
	}

	router := setupProductRouter(store, nil)
	rr := doAuthRequest(t, router, "GET", "/restaurants/"+restaurantID.String()+"/products", nil, testClaims(restaurantID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	products := decodeListResponse(t, rr)
	if len(products) != 3 {
		t.Fatalf("products: got %d, want all 3", len(products))
	}
}

func TestProductCreate_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	categoryID := uuid.New()
	notifier := &fakeNotifier{}

	store := &mockProductStore{
		createProductFn: func(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
			if arg.RestaurantID != restaurantID {
				t.Errorf("restaurant id: got %v, want %v", arg.RestaurantID, restaurantID)
			}
			if arg.Name != "Moqueca" {
				t.Errorf("name: got %v", arg.Name)
			}
			if got := pricing.NumericToDecimal(arg.Price).StringFixed(2); got != "42.90" {
				t.Errorf("price: got %v, want 42.90", got)
			}
			if !arg.CategoryID.Valid || uuid.UUID(arg.CategoryID.Bytes) != categoryID {
				t.Errorf("category id: got %+v", arg.CategoryID)
			}
			if !arg.Description.Valid || arg.Description.String != "Moqueca de peixe com pirão" {
				t.Errorf("description: got %+v", arg.Description)
			}
			if !arg.IsVisible {
				t.Error("is_visible should default to true")
			}
			return database.Product{
				ID:           uuid.New(),
				RestaurantID: arg.RestaurantID,
				CategoryID:   arg.CategoryID,
				Name:         arg.Name,
				Description:  arg.Description,
				Price:        arg.Price,
				IsActive:     true,
				IsVisible:    arg.IsVisible,
			}, nil
		},
	}

	router := setupProductRouter(store, notifier)
	rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/products", map[string]interface{}{
		"category_id": categoryID.String(),
		"name":        "Moqueca",
		"description": "Moqueca de peixe com pirão",
		"price":       "42.90",
	}, testClaims(restaurantID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["price"] != "42.90" {
		t.Errorf("price: got %v, want 42.90", resp["price"])
	}

	types := notifier.eventTypes()
	if len(types) != 1 || types[0] != ws.EventProductUpdated {
		t.Errorf("events: got %v, want [%s]", types, ws.EventProductUpdated)
	}
}

func TestProductCreate_Validation(t *testing.T) {
	restaurantID := uuid.New()
	router := setupProductRouter(&mockProductStore{}, nil)

	cases := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"missing name", map[string]interface{}{"price": "10.00"}, "name is required"},
		{"bad price", map[string]interface{}{"name": "Pastel", "price": "dez"}, "invalid price"},
		{"negative price", map[string]interface{}{"name": "Pastel", "price": "-1.00"}, "invalid price"},
		{"bad category", map[string]interface{}{"name": "Pastel", "price": "10.00", "category_id": "nope"}, "invalid category_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, "POST", "/restaurants/"+restaurantID.String()+"/products", tc.body, testClaims(restaurantID))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			resp := decodeResponse(t, rr)
			if resp["error"] != tc.want {
				t.Errorf("error: got %v, want %v", resp["error"], tc.want)
			}
		})
	}
}

func TestProductSetSoldOut_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	product := testDBProduct(restaurantID)
	notifier := &fakeNotifier{}

	store := &mockProductStore{
		setProductSoldOutFn: func(ctx context.Context, arg database.SetProductSoldOutParams) (database.Product, error) {
			if arg.ID != product.ID || !arg.IsSoldOut {
				t.Errorf("args: got %+v", arg)
			}
			out := product
			out.IsSoldOut = true
			return out, nil
		},
	}

	router := setupProductRouter(store, notifier)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/products/"+product.ID.String()+"/sold-out", map[string]interface{}{
		"is_sold_out": true,
	}, testClaims(restaurantID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["is_sold_out"] != true {
		t.Errorf("is_sold_out: got %v, want true", resp["is_sold_out"])
	}

	types := notifier.eventTypes()
	if len(types) != 1 || types[0] != ws.EventProductUpdated {
		t.Errorf("events: got %v, want [%s]", types, ws.EventProductUpdated)
	}
}

func TestProductSetSoldOut_NotFound(t *testing.T) {
	restaurantID := uuid.New()
	router := setupProductRouter(&mockProductStore{}, nil)
	rr := doAuthRequest(t, router, "PATCH", "/restaurants/"+restaurantID.String()+"/products/"+uuid.New().String()+"/sold-out", map[string]interface{}{
		"is_sold_out": true,
	}, testClaims(restaurantID))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
