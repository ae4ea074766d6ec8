package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/quoteportal/server/internal/auth"
	"github.com/quoteportal/server/internal/http/handlers"
	"github.com/quoteportal/server/internal/middleware"
	"github.com/quoteportal/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	jwtService *auth.JWTService,
	accounts repo.AccountRepo,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// Protected routes (require valid JWT and an active account)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService, accounts))
		r.Get("/me", authHandler.HandleMe)

		// Admin overrides additionally require the admin-employee role.
		r.Route("/admin/accounts/{id}", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/suspend", adminHandler.HandleSuspend)
			r.Post("/reactivate", adminHandler.HandleReactivate)
			r.Post("/deactivate", adminHandler.HandleDeactivate)
			r.Post("/reset-device", adminHandler.HandleResetDevice)
			r.Get("/login-history", adminHandler.HandleLoginHistory)
		})
	})

	return r
}
