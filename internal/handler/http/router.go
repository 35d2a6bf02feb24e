package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cetzal/authcore/pkg/health"
	"github.com/cetzal/authcore/pkg/middleware"
)

// RouterDeps holds everything NewRouter wires into routes.
type RouterDeps struct {
	Auth        AuthService
	Users       UserService
	Products    ProductService
	Health      *health.Handler
	CORS        middleware.CORSConfig
	ServiceName string
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.Tracing(d.ServiceName))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.PrometheusMetrics(d.ServiceName))
	r.Use(middleware.CORS(d.CORS))

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(d.Auth, d.Logger)
	requireAuth := middleware.Auth(authHandler.Verifier(), d.Logger)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Post("/login", authHandler.Login)
		r.Post("/token/refresh", authHandler.Refresh)
		r.With(requireAuth).Post("/logout", authHandler.Logout)
	})

	userHandler := NewUserHandler(d.Users, d.Logger)
	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(ContentTypeJSON)

		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)
		r.Get("/{id}", userHandler.Get)
		r.Put("/{id}", userHandler.Update)
		r.Delete("/{id}", userHandler.Delete)
	})

	productHandler := NewProductHandler(d.Products, d.Logger)
	r.Route("/products", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(ContentTypeJSON)

		r.Get("/", productHandler.List)
		r.Post("/", productHandler.Create)
		r.Get("/{id}", productHandler.Get)
		r.Put("/{id}", productHandler.Update)
		r.Delete("/{id}", productHandler.Delete)
	})

	return r
}
