// Package api implements the estatehub REST API using chi.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// LocalUser is the tenant every request acts as when auth is disabled.
const LocalUser = "local"

type userKey struct{}

// WithUser stores the authenticated tenant on ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the authenticated tenant.
func UserFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

func userOf(r *http.Request) string { return UserFrom(r.Context()) }

// AuthMiddleware returns middleware that maps a Bearer token to a tenant.
// If enabled is false, all requests pass through as LocalUser.
// If enabled is true, requests must carry "Authorization: Bearer <token>" for
// one of users (token -> user id). GET requests may pass the token as the
// access_token query parameter instead, since EventSource cannot set headers.
func AuthMiddleware(enabled bool, users map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), LocalUser)))
				return
			}
			token := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			} else if r.Method == http.MethodGet {
				token = r.URL.Query().Get("access_token")
			}
			user, ok := lookupToken(users, token)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody(r, "unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func lookupToken(users map[string]string, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	var found string
	for candidate, user := range users {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			found = user
		}
	}
	return found, found != ""
}
