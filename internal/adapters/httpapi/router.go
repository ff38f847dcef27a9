package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterOptions struct {
	// Logger receives one access-log line per request. Zero value disables access logging.
	Logger *zerolog.Logger
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Logger != nil {
		r.Use(NewRequestLogger(*opts.Logger))
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)
	r.Get("/healthz", s.Health)

	r.Post("/receipts/process", s.ProcessReceipt)
	r.Get("/receipts/{id}/points", s.GetPoints)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}
