package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"registrar/internal/identity"
	id "registrar/pkg/domain"
	"registrar/pkg/requestcontext"
)

type claimsKey struct{}

// GetClaims retrieves the validated token claims from the context. Returns
// nil for unauthenticated requests; identity.Claims treats nil as
// no-scopes.
func GetClaims(ctx context.Context) *identity.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*identity.Claims)
	return claims
}

// WithClaims injects claims into a context. Exported for handler tests that
// bypass the middleware chain.
func WithClaims(ctx context.Context, claims *identity.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// TokenValidator validates a raw bearer token into claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*identity.Claims, error)
}

// RequireAuth rejects requests without a valid provider token and stashes
// the claims and user ID in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w)
				return
			}
			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "token subject is not a user id",
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w)
				return
			}
			ctx = WithClaims(ctx, claims)
			ctx = requestcontext.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
