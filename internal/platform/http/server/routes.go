package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmw "github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/middleware"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/sandbox/api"
)

// setupRoutes creates the chi router.
//
// Always-on transport middleware (order is invariant):
// RequestID -> request-scoped logger -> access log -> recoverer -> CORS -> metrics.
// Rate limiting and fault injection apply to ledger routes only, never to
// /healthz or /metrics. A rate-limited request is never counted as a fault.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger))
	r.Use(httpmw.AccessLogMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(httpmw.CORSMiddleware)
	r.Use(s.metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusMethodNotAllowed, api.ReasonMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", api.HealthHandler)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if s.api != nil {
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware(s.rejectRateLimited))
			}
			r.Use(httpmw.FaultsMiddleware(s.cfg.Faults, s.rejectInjected, s.rnd))
			s.api.Mount(r)
		})
	}

	return r
}

func (s *Server) rejectInjected(w http.ResponseWriter, r *http.Request, status int) {
	s.metrics.InjectedFailure(status)
	api.WriteError(w, status, api.ReasonFailureInjected, "failure injected")
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request, status int) {
	s.metrics.RateLimited()
	api.WriteError(w, status, api.ReasonRateLimited, "too many requests")
}
