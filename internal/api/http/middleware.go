package http

import (
	"context"
	"errors"
	"net/http"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
	"fishtank-backend/internal/security"
)

type ctxKey int

const actorKey ctxKey = iota

// AuthMiddleware verifies the bearer token and stores the caller on the
// request context. Requests without a valid token get 401.
func AuthMiddleware(verifier security.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSONError(w, http.StatusUnauthorized, "authorization token is not provided")
				return
			}
			id, err := verifier.Verify(r.Context(), security.BearerToken(header))
			if err != nil {
				logger.Debug("Token rejected", "path", r.URL.Path, "error", err)
				if errors.Is(err, security.ErrExpiredToken) {
					writeJSONError(w, http.StatusUnauthorized, "token has expired")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, domain.Actor{UserID: id.UserID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := r.Context().Value(actorKey).(domain.Actor)
	return actor
}
