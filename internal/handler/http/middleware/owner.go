package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/salonlabs/billing-backend-go/internal/handler/http/response"
)

// RequireOwner guards plan-change endpoints: only the salon owner may alter
// the subscription.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Forbidden(w, "owner access required")
			return
		}

		role, ok := claims["role"].(string)
		if !ok || role != "owner" {
			response.Forbidden(w, "owner access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
