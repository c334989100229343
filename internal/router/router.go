package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedefacil/api/internal/cart"
	"github.com/pedefacil/api/internal/config"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/handler"
	mw "github.com/pedefacil/api/internal/middleware"
	"github.com/pedefacil/api/internal/realtime"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

// New creates a Chi router with all application routes wired up. Public
// storefront routes live under /r/{slug}; staff routes under
// /restaurants/{rid} behind JWT auth and restaurant scoping.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, notifier handler.Notifier, carts cart.Store) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services shared between public and staff surfaces.
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.Store {
		return database.New(db)
	})
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	discountService := service.NewDiscountService(queries)
	guard := realtime.NewInflightGuard()

	// Public storefront routes
	r.Route("/r/{slug}", func(r chi.Router) {
		menuHandler := handler.NewMenuHandler(queries, discountService)
		menuHandler.RegisterRoutes(r)

		cartHandler := handler.NewCartHandler(queries, carts, orderService, notifier)
		cartHandler.RegisterRoutes(r)
	})

	// Staff routes (require authentication and restaurant membership)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			orderHandler := handler.NewOrderHandler(orderService, queries, notifier, guard)
			r.Route("/orders", orderHandler.RegisterRoutes)

			productHandler := handler.NewProductHandler(queries, notifier)
			r.Route("/products", productHandler.RegisterRoutes)

			tableHandler := handler.NewTableHandler(tableService, queries, notifier)
			tableHandler.RegisterRoutes(r)

			loyaltyHandler := handler.NewLoyaltyHandler(queries)
			loyaltyHandler.RegisterRoutes(r)

			// Pricing configuration is owner-only.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner))

				couponHandler := handler.NewCouponHandler(queries, notifier)
				r.Route("/coupons", couponHandler.RegisterRoutes)

				zoneHandler := handler.NewZoneHandler(queries, notifier)
				r.Route("/zones", zoneHandler.RegisterRoutes)
			})
		})
	})

	return r
}
