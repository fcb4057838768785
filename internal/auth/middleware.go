package auth

import (
	"net/http"
	"strings"
)

// Middleware guards the collector's query and export API. Every
// non-exempt request must carry a bearer token whose role satisfies the
// route policy; the verified identity, including any station scope, is
// placed on the request context for the handlers.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs an auth middleware over the given policy.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap applies the token and role checks to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, guarded := m.Policy.RequiredRole(r)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.authenticate(r)
		if err != nil {
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, ErrForbidden.Error(), http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), role, claims.Subject, claims.Stations)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate verifies the request's bearer token.
func (m *Middleware) authenticate(r *http.Request) (*Claims, error) {
	token := extractBearer(r)
	if token == "" {
		return nil, ErrUnauthorized
	}
	return ParseJWT(token, m.Secret)
}

const bearerScheme = "bearer "

// extractBearer pulls the token out of the Authorization header. The
// scheme comparison is case-insensitive per RFC 7235.
func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) <= len(bearerScheme) {
		return ""
	}
	if !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}
