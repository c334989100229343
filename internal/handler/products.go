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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/pedefacil/api/internal/ws"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProductsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	SetProductSoldOut(ctx context.Context, arg database.SetProductSoldOutParams) (database.Product, error)
}

// ProductHandler handles staff catalog endpoints.
type ProductHandler struct {
	store    ProductStore
	notifier Notifier
}

func NewProductHandler(store ProductStore, notifier Notifier) *ProductHandler {
	return &ProductHandler{store: store, notifier: notifier}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter:
// /restaurants/{rid}/products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{id}/sold-out", h.SetSoldOut)
}

type createProductRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	IsVisible   *bool  `json:"is_visible"`
}

type setSoldOutRequest struct {
	IsSoldOut bool `json:"is_sold_out"`
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  *string   `json:"category_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
	IsActive    bool      `json:"is_active"`
	IsVisible   bool      `json:"is_visible"`
	IsSoldOut   bool      `json:"is_sold_out"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// List handles GET /restaurants/{rid}/products. Staff see the full catalog,
// sold-out and hidden products included.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	products, err := h.store.ListProductsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = dbProductToResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /restaurants/{rid}/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	params := database.CreateProductParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Price:        pricing.DecimalToNumeric(price),
		IsVisible:    true,
	}
	if req.IsVisible != nil {
		params.IsVisible = *req.IsVisible
	}
	if req.Description != "" {
		params.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
			return
		}
		params.CategoryID = pgtype.UUID{Bytes: categoryID, Valid: true}
	}

	product, err := h.store.CreateProduct(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbProductToResponse(product)
	h.notifier.Notify(restaurantID, ws.EventProductUpdated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// SetSoldOut handles PATCH /restaurants/{rid}/products/{id}/sold-out. The
// kitchen's "86 it" switch; menus update through the product.updated event.
func (h *ProductHandler) SetSoldOut(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req setSoldOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	product, err := h.store.SetProductSoldOut(r.Context(), database.SetProductSoldOutParams{
		ID:           productID,
		RestaurantID: restaurantID,
		IsSoldOut:    req.IsSoldOut,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: set product sold out: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbProductToResponse(product)
	h.notifier.Notify(restaurantID, ws.EventProductUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

func dbProductToResponse(p database.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		CategoryID:  uuidPtr(p.CategoryID),
		Name:        p.Name,
		Description: textPtr(p.Description),
		Price:       numericToString(p.Price),
		IsActive:    p.IsActive,
		IsVisible:   p.IsVisible,
		IsSoldOut:   p.IsSoldOut,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
