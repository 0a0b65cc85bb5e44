package http

import (
	"net/http"

	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/authz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps collects what NewRouter wires together. Metrics may be nil.
type RouterDeps struct {
	Handler    *Handler
	Authorizer *authz.Authorizer
	LoginLimit *RateLimiter
	Metrics    http.Handler
	Logger     logging.Logger
}

// NewRouter builds the auth service API.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(d.LoginLimit.Middleware).Post("/login", d.Handler.Login)
		r.Post("/logout", d.Handler.Logout)

		selfOrAdmin := d.Authorizer.Middleware(authz.RuleSelfOrAdmin, func(r *http.Request) string {
			return chi.URLParam(r, "id")
		})
		r.With(selfOrAdmin).Patch("/users/{id}/password", d.Handler.ChangePassword)
	})

	return r
}

// NewSideRouter serves only /healthz and /metrics. The users service uses
// it next to its gRPC API.
func NewSideRouter(metrics http.Handler, l logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(l))
	r.Use(middleware.Recoverer)
	r.Get("/healthz", Healthz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}
