// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for the resolved user identity.
	UserIDKey ContextKey = "user_id"

	// sessionCookie carries the browser session identity across requests.
	sessionCookie = "gateway_session"
)

// Identity resolves the per-request user identity and stores it on the
// context. Resolution order: the configured override (single-user test
// deployments), an existing session cookie, then a freshly minted id set as
// a cookie on the response.
func Identity(override string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := override

			if userID == "" {
				if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
					userID = c.Value
				}
			}

			if userID == "" {
				userID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookie,
					Value:    userID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets the resolved user identity from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}
