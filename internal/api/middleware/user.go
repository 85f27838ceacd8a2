package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lumora-ai/lumora/internal/api"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// RequireUser resolves the calling user from the X-User-ID header. Identity
// verification happens upstream at the gateway; every document and exchange
// is scoped to this value.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			api.Error(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
