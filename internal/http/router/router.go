// Package router assembles the HTTP surface.
package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	internalhttp "github.com/idbridge/idbridge/internal/http"
	signinctrl "github.com/idbridge/idbridge/internal/http/controllers/signin"
	httperrors "github.com/idbridge/idbridge/internal/http/errors"
	"github.com/idbridge/idbridge/internal/http/middlewares"
)

// HealthChecker reports dependency liveness for /healthz.
type HealthChecker func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Controllers *signinctrl.Controllers
	Metrics     http.Handler
	Health      []HealthChecker
}

// New builds the mux with the sign-in routes, health and metrics endpoints,
// wrapped in the request-id, logging and metrics middlewares.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})

	r.Get("/signin", cfg.Controllers.SignIn.SignIn)
	r.Get("/signin/callback", cfg.Controllers.Callback.Callback)
	r.Get("/signin/signout", cfg.Controllers.SignOut.SignOut)
	r.Post("/signin/signout", cfg.Controllers.SignOut.SignOut)
	r.Get("/signin/providers", cfg.Controllers.Providers.Providers)

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		internalhttp.WithMetrics,
	)
}

func healthHandler(checks []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
