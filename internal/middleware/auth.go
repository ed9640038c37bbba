package middleware

import (
	"context"
	"net/http"

	"socialregistration/internal/session"
)

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	sess, ok := session.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		return "", false
	}
	return sess.UserID, true
}

// AuthMiddleware rejects requests whose session is not authenticated. It
// relies on SessionLoader having run first.
type AuthMiddleware struct{}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
