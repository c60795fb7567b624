package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/sequence/analyze-story", h.AnalyzeStory)
	mux.HandleFunc("POST /api/sequence/submit", h.Submit)
	mux.HandleFunc("GET /api/sequence/status/{id}", h.Status)
	mux.HandleFunc("GET /api/sequence/compositions", h.ListCompositions)

	mux.HandleFunc("GET /api/videos", h.ListVideos)
	mux.HandleFunc("GET /api/videos/{id}", h.GetVideo)
	mux.HandleFunc("DELETE /api/videos/{id}", h.DeleteVideo)
	mux.HandleFunc("PATCH /api/videos/{id}/visibility", h.SetVisibility)

	mux.HandleFunc("GET /api/library", h.Gallery)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
