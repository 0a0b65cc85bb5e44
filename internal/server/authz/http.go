package authz

import (
	"net/http"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/httperr"
)

// Middleware enforces rule on an HTTP route. target extracts the subject
// the route acts on and may be nil for rules that do not need one.
func (a *Authorizer) Middleware(rule Rule, target func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := Request{Authorization: r.Header.Get(common.AuthorizationHeaderName)}
			if target != nil {
				req.Target = target(r)
			}

			p, err := a.Authorize(r.Context(), rule, req)
			if err != nil {
				httperr.Write(w, err)
				return
			}

			ctx := r.Context()
			if p != nil {
				ctx = NewContext(ctx, p)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
