package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"folio/internal/core/domain"
	"folio/internal/core/services"
)

type actorKeyType struct{}

var ActorKey = actorKeyType{}

// ActorFromContext returns the authenticated caller set by AuthMiddleware.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ActorKey).(domain.Actor)
	return a, ok
}

// AuthMiddleware validates the bearer token and injects the resulting Actor
// into the request context. Expired and malformed tokens are rejected with
// distinct codes so the widget can tell re-login from a bug.
func AuthMiddleware(tokenSvc *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, domain.ErrNoToken)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeAuthError(w, domain.ErrInvalidToken)
				return
			}
			claims, err := tokenSvc.Validate(parts[1])
			if err != nil {
				writeAuthError(w, err)
				return
			}
			actor := domain.Actor{UserID: claims.UserID, Role: claims.Role}
			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route on the token's role claim. Must run after
// AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeAuthError(w, domain.ErrNoToken)
			return
		}
		if actor.Role != domain.RoleAdmin {
			writeAuthError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	code := "INVALID_TOKEN"
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, domain.ErrNoToken):
		code = "NO_TOKEN"
	case errors.Is(err, domain.ErrTokenExpired):
		code = "TOKEN_EXPIRED"
	case errors.Is(err, domain.ErrForbidden):
		code = "FORBIDDEN"
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "error": err.Error()})
}
