/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for game clients
  5. Tracing:    One server span per request (optional)
  6. Auth:       Bearer token to caller resolution

ROUTE GROUPS:
  /api/offers/*     Offer catalog (reads open, writes admin)
  /api/purchase/*   Purchases (authenticated)
  /api/admin/*      Balance administration
  /health           Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/playforge/store-engine/auth"
	"github.com/playforge/store-engine/tracing"
)

// RouterConfig carries the router's cross-cutting settings.
type RouterConfig struct {
	// AllowedOrigins is a comma-separated CORS origin list; "*" allows all.
	AllowedOrigins string
	// Verifier resolves bearer tokens into callers. Required.
	Verifier *auth.TokenVerifier
	// TraceService, when non-empty, enables the tracing middleware under
	// this service name.
	TraceService string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if cfg.TraceService != "" {
		r.Use(tracing.Middleware(cfg.TraceService))
	}
	r.Use(auth.Middleware(cfg.Verifier))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Offer catalog routes
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", h.ListOffers)
			r.Post("/", h.CreateOffer)
			r.Post("/import", h.ImportOffers)
			r.Get("/by-ids", h.GetOffersByIDs)
			r.Get("/by-tags", h.GetOffersByTags)
			r.Get("/by-timestamp", h.GetOffersByTimestamp)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetOffer)
				r.Delete("/", h.DeleteOffer)
				r.Get("/tags", h.GetOfferTags)
				r.Put("/tags", h.SetOfferTags)
				r.Get("/properties", h.GetOfferProperties)
				r.Put("/properties", h.SetOfferProperties)
				r.Put("/name", h.SetOfferName)
				r.Put("/description", h.SetOfferDescription)
				r.Put("/image", h.SetOfferImage)
				r.Put("/prices", h.SetOfferPrices)
				r.Put("/time", h.SetOfferTime)
			})
		})

		// Purchase routes
		r.Route("/purchase", func(r chi.Router) {
			r.Post("/items", h.BuyItems)
			r.Post("/offer", h.BuyOffer)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/credits", h.CreditBalance)
			r.Get("/balances", h.GetBalance)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})

	return r
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
