/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the routes. This is
  the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique id per request, echoed in access logs
  2. RealIP:     client address from X-Forwarded-For / X-Real-IP
  3. Access log: one zap line per request
  4. Recoverer:  panic recovery (500 instead of crash)
  5. CORS:       cross-origin requests for the front-end

ROUTE GROUPS:
  /api/llm/*        Extraction service callbacks
  /api/frontend/*   Front-end reads
  /api/leave/*      Leave workflow
  /health           Liveness + store ping

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/serve.go: server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures NewRouter.
type Options struct {
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/llm", func(r chi.Router) {
			r.Post("/callback", h.Callback)
			r.Post("/extract", h.Extract)
		})

		r.Route("/frontend/users/{id}", func(r chi.Router) {
			r.Get("/data", h.GetUserData)
			r.Get("/summary", h.GetUserSummary)
		})

		r.Route("/leave", func(r chi.Router) {
			r.Post("/record", h.RecordLeave)
			r.Route("/requests", func(r chi.Router) {
				r.Post("/", h.SubmitLeave)
				r.Get("/pending", h.ListPendingLeave)
				r.Post("/{id}/resolve", h.ResolveLeave)
			})
		})
	})

	return r
}

// AccessLog logs one line per request with zap.
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
