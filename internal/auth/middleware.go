package auth

import (
	"net/http"
	"strings"
)

// UserHeader carries the authenticated user id set by the upstream gateway.
const UserHeader = "X-User-ID"

// Middleware trusts the gateway's identity header and stores it in context.
type Middleware struct {
	Header string
	Policy Policy
}

// NewMiddleware constructs an identity middleware.
func NewMiddleware(policy Policy) *Middleware {
	return &Middleware{Header: UserHeader, Policy: policy}
}

// Wrap rejects non-exempt requests that carry no user id.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	header := m.Header
	if header == "" {
		header = UserHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		userID := strings.TrimSpace(r.Header.Get(header))
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}
