package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ConvoSphere/convosphere/internal/middleware"
)

// NewRouter builds the HTTP surface: versioned API plus health and the
// WebSocket event hub.
func NewRouter(h *Handlers, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware(corsOrigin))

	r.Get("/healthz", h.Healthz)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", h.ChatCompletions)
		r.Post("/embeddings", h.Embeddings)
		r.Get("/providers/status", h.ProviderStatus)
		r.Get("/costs/summary", h.CostSummary)
	})

	return otelhttp.NewHandler(r, "convosphere.http")
}

// corsMiddleware allows the configured origin on API responses.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
