package middleware

import (
	"context"
	"net/http"
	"strings"
)

const AnonymousUser = "anonymous"

// UserID trusts the X-User-ID header set by the gateway in front of the API.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if id == "" {
			id = AnonymousUser
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserKey, id)
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserKey).(string); ok && id != "" {
		return id
	}
	return AnonymousUser
}
