package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/Dilbarpun07/GBFC-website/internal/api/docs"
	"github.com/Dilbarpun07/GBFC-website/internal/api/handler"
	"github.com/Dilbarpun07/GBFC-website/internal/auth"
	"github.com/Dilbarpun07/GBFC-website/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, verifier *auth.Verifier, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "If-None-Match", "Cache-Control", auth.DevPrincipalHeader},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/store", h.HealthCheckStore)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI over the embedded doc.json.
	r.Get("/docs/doc.json", docs.Handler)
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(verifier.Middleware)

		r.Post("/session", h.EstablishSession)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireSession)

			r.Delete("/session", h.EndSession)
			r.Post("/resync", h.Resync)
			r.Get("/notices", h.Notices)
			r.Get("/stream", h.Stream)

			r.Get("/snapshot", h.GetSnapshot)
			r.Get("/dashboard", h.GetDashboard)

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", h.ListTeams)
				r.Post("/", h.CreateTeam)
				r.Patch("/{id}", h.EditTeam)
				r.Delete("/{id}", h.DeleteTeam)
			})
			r.Route("/players", func(r chi.Router) {
				r.Get("/", h.ListPlayers)
				r.Get("/by-team", h.PlayersByTeam)
				r.Post("/", h.AddPlayer)
				r.Patch("/{id}", h.EditPlayer)
				r.Delete("/{id}", h.DeletePlayer)
			})
			r.Route("/matches", func(r chi.Router) {
				r.Get("/", h.ListMatches)
				r.Post("/", h.AddMatch)
				r.Patch("/{id}", h.EditMatch)
				r.Delete("/{id}", h.DeleteMatch)
			})
			r.Route("/training-sessions", func(r chi.Router) {
				r.Get("/", h.ListTrainingSessions)
				r.Post("/", h.AddTrainingSession)
				r.Patch("/{id}", h.EditTrainingSession)
				r.Delete("/{id}", h.DeleteTrainingSession)
			})
		})
	})

	return r
}
