package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sufra-pos/api/internal/config"
	"github.com/sufra-pos/api/internal/database"
	"github.com/sufra-pos/api/internal/enum"
	"github.com/sufra-pos/api/internal/handler"
	mw "github.com/sufra-pos/api/internal/middleware"
	"github.com/sufra-pos/api/internal/service"
	"github.com/sufra-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and business scoping middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/businesses/{bid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		taxRate = decimal.Zero
	}

	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.Store {
			return database.New(db)
		},
		service.Options{
			TaxRate:              taxRate,
			TrackPendingRemovals: cfg.TrackPendingRemovals,
		},
	)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Business-scoped routes
		r.Route("/businesses/{bid}", func(r chi.Router) {
			r.Use(mw.RequireBusiness)

			// Stock ledger
			stockHandler := handler.NewStockHandler(queries)
			r.Route("/stock-items", stockHandler.RegisterRoutes)

			// Catalog
			productHandler := handler.NewProductHandler(queries)
			r.Route("/products", productHandler.RegisterRoutes)

			// Orders
			orderHandler := handler.NewOrderHandler(orderService, queries, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Kitchen decision queue. Cashiers can look at the queue but
			// only kitchen staff and up decide.
			kitchenHandler := handler.NewKitchenHandler(orderService, queries, hub, cfg.CancelDecisionTTL)
			r.Route("/kitchen", func(r chi.Router) {
				r.Get("/cancelled-items", kitchenHandler.List)
				r.Get("/cancelled-items/{id}/ingredients", kitchenHandler.ListIngredients)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleKitchen))
					r.Post("/process-waste", kitchenHandler.ProcessDecisions)
					r.Post("/auto-expire", kitchenHandler.Expire)
				})
			})
		})
	})

	return r
}
