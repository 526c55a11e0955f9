package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequireUser rejects requests that reach it without an authenticated user.
// It guards routes mounted outside the Auth middleware chain by mistake.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := UserIDFromContext(r.Context())
			if !ok || uid == uuid.Nil {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
