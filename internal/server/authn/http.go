package authn

import (
	"encoding/json"
	"net/http"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
)

// Middleware attaches the caller's principal to the request context when
// the bearer token is valid. It never rejects a request itself.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.Authenticate(r.Context(), r.Header.Get(common.AuthorizationHeaderName)); ok {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthority answers 401 for anonymous callers and 403 for callers
// lacking the authority.
func RequireAuthority(want Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			if !p.Has(want) {
				deny(w, http.StatusForbidden, "forbidden", "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
