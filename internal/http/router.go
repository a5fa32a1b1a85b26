package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the handlers to mount. Nil handlers leave their
// routes unregistered. Middleware runs outermost first, inside RealIP and
// outside panic recovery.
type RouterConfig struct {
	Sessions     *SessionHandler
	Availability *AvailabilityHandler
	Trainers     *TrainerHandler
	Gestures     *GestureHandler
	Middleware   []func(http.Handler) http.Handler
	CORSOrigins  []string
}

// NewRouter builds the API router. Unsupported methods on a known path
// answer 405.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.Use(chimw.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if h := cfg.Sessions; h != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.Get)
			r.Post("/{id}/check", h.Check)
			r.Post("/{id}/move", h.Move)
		})
		r.Get("/buffers", h.Buffers)
	}

	if h := cfg.Gestures; h != nil {
		r.Route("/gestures", func(r chi.Router) {
			r.Post("/", h.Start)
			r.Get("/{id}", h.Get)
			r.Post("/{id}/hover", h.Hover)
			r.Post("/{id}/drop", h.Drop)
			r.Delete("/{id}", h.Cancel)
		})
	}

	if cfg.Trainers == nil && cfg.Availability == nil {
		return r
	}
	r.Route("/trainers", func(r chi.Router) {
		if h := cfg.Trainers; h != nil {
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
			r.Put("/{id}", h.Put)
		}
		if h := cfg.Availability; h != nil {
			r.Get("/{id}/availability", h.List)
			r.Put("/{id}/availability", h.Replace)
			r.Get("/{id}/availability/grid", h.GetGrid)
			r.Put("/{id}/availability/grid", h.PutGrid)
			r.Patch("/{id}/availability/grid", h.PatchGrid)
			r.Post("/{id}/overrides", h.AddOverride)
			r.Delete("/{id}/overrides/{overrideID}", h.RemoveOverride)
			r.Get("/{id}/calendar", h.Calendar)
		}
	})
	if h := cfg.Availability; h != nil {
		r.Delete("/overrides", h.PruneOverrides)
	}

	return r
}
