package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/shelfspace/inventory-be/internal/audit"
	"github.com/shelfspace/inventory-be/internal/auth"
	"github.com/shelfspace/inventory-be/internal/challenge"
	"github.com/shelfspace/inventory-be/internal/config"
	"github.com/shelfspace/inventory-be/internal/http/handlers"
	"github.com/shelfspace/inventory-be/internal/middleware"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/storage"
	"github.com/shelfspace/inventory-be/internal/twofactor"
)

// Stores bundles the persistence dependencies the router needs.
type Stores struct {
	Users     storage.UserStore
	Items     storage.InventoryStore
	Audits    storage.AuditStore
	Challenge challenge.Cache
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, stores Stores) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, stores),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// NewRouter builds the full route tree; exposed separately so tests can mount
// it on an httptest server.
func NewRouter(cfg config.Config, stores Stores) http.Handler {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	engine := twofactor.NewEngine(cfg.TOTPIssuer, cfg.TOTPSkew)
	recorder := audit.NewRecorder(stores.Audits)
	svc := auth.NewService(stores.Users, tokens, engine, stores.Challenge, recorder, cfg.ChallengeTTL)

	authHandler := handlers.NewAuthHandler(svc)
	userHandler := handlers.NewUserHandler(stores.Users, recorder)
	inventoryHandler := handlers.NewInventoryHandler(stores.Items, recorder)
	health := handlers.NewHealthHandler(time.Now())

	requireAuth := middleware.RequireAuth(tokens, stores.Users)

	r := chi.NewRouter()
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health.Handle)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/verify-2fa", authHandler.HandleVerify2FA)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.HandleLogout)
				r.Post("/enable-2fa", authHandler.HandleEnable2FA)
				r.Post("/disable-2fa", authHandler.HandleDisable2FA)
				r.Get("/user-profile", authHandler.HandleProfile)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Get("/", userHandler.HandleList)
			r.Post("/", userHandler.HandleCreate)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", inventoryHandler.HandleList)
			r.Get("/{id}", inventoryHandler.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleManager))
				r.Post("/", inventoryHandler.HandleCreate)
				r.Put("/{id}", inventoryHandler.HandleUpdate)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Delete("/{id}", inventoryHandler.HandleDelete)
			})
		})
	})

	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
