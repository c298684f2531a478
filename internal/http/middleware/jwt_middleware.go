package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clubsync/presence/internal/http/response"
	"github.com/clubsync/presence/pkg/auth"
	"github.com/clubsync/presence/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireJWT authenticates the bearer token and, when requiredRole is set,
// enforces it. Admins pass every role gate.
func RequireJWT(secret, requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.Unauthorized(w, "missing or invalid authorization header")
				return
			}

			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				response.Unauthorized(w, "invalid token")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != auth.RoleAdmin {
				response.Forbidden(w, "insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.MemberIDKey, claims.Sub)
			ctx = context.WithValue(ctx, CtxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}
