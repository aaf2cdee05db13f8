package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router, passed from main.go so the
// router can configure CORS, auth, and local file serving from env vars.
type RouterConfig struct {
	// APIKey must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	APIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// FilesDir, when non-empty, is served at /files — used with the local
	// blob store so result URLs resolve.
	FilesDir string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check — public, no auth required
	r.Get("/health", h.Health)

	// Rendered videos from the local blob store
	if cfg.FilesDir != "" {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir)))
		r.Get("/files/*", fs.ServeHTTP)
	}

	// API routes — protected by API key auth when configured
	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(APIKeyAuth(cfg.APIKey))
		}

		r.Post("/jobs", h.CreateJob)
		r.Post("/jobs/n8n", h.CreateJobN8N)
		r.Get("/jobs/{id}", h.GetJob)
	})

	return r
}
