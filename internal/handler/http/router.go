package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/bookstore/internal/auth"
	"github.com/vasiliy-maslov/bookstore/internal/catalog"
	"github.com/vasiliy-maslov/bookstore/internal/order"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Catalog catalog.Service
	Orders  order.Service
	Auth    auth.Provider
	Health  HealthChecker
}

func NewRouter(svc Services) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if svc.Health != nil {
			if err := svc.Health.Ping(r.Context()); err != nil {
				log.Error().Err(err).Msg("Health check failed")
				respondWithError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	books := NewBookHandler(svc.Catalog)
	sellers := NewSellerHandler(svc.Catalog)
	orders := NewOrderHandler(svc.Orders)
	authHandler := NewAuthHandler(svc.Auth)

	books.RegisterRoutes(router)
	authHandler.RegisterRoutes(router)

	router.Group(func(r chi.Router) {
		r.Use(RequireUser(svc.Auth))

		authHandler.RegisterSessionRoutes(r)
		orders.RegisterRoutes(r)
		sellers.RegisterRoutes(r)

		r.Route("/admin", func(admin chi.Router) {
			admin.Use(RequireAdmin)

			books.RegisterAdminRoutes(admin)
			orders.RegisterAdminRoutes(admin)
		})
	})

	return router
}
