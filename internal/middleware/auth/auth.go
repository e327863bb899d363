// Package auth resolves bearer tokens to the owner id every request runs as.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	applog "finassist/internal/log"
)

type ownerKey struct{}

// WithOwner returns a context carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the authenticated owner, or "" when the request was not
// authenticated.
func OwnerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// DenyFunc writes the 401 response.
type DenyFunc func(w http.ResponseWriter, r *http.Request, message string)

// BearerMiddleware authenticates requests against a static token to owner
// table. An empty table rejects every request.
func BearerMiddleware(tokens map[string]string, deny DenyFunc) func(http.Handler) http.Handler {
	table := make(map[string]string, len(tokens))
	for token, owner := range tokens {
		if token != "" && owner != "" {
			table[token] = owner
		}
	}
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, message string) {
			http.Error(w, message, http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				deny(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				deny(w, r, "authorization header must use Bearer scheme")
				return
			}

			owner, ok := table[strings.TrimSpace(header[len(bearerPrefix):])]
			if !ok {
				slog.WarnContext(r.Context(), "Rejected bearer token",
					applog.FieldComponent, applog.ComponentAuth,
					applog.FieldPath, r.URL.Path)
				deny(w, r, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}
