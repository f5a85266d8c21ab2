package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/tipo-sto/kbase/internal/api"
	"github.com/tipo-sto/kbase/internal/domain"
)

type contextKey string

const ClientKey contextKey = "client"

// AuthValidator resolves a bearer token to a client name.
type AuthValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts a single shared API token.
type StaticToken string

func (s StaticToken) ValidateToken(_ context.Context, token string) (string, error) {
	if s == "" || subtle.ConstantTimeCompare([]byte(s), []byte(token)) != 1 {
		return "", domain.ErrUnauthorized
	}
	return "api-token", nil
}

func BearerAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			client, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid api token")
				return
			}

			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClient(ctx context.Context) string {
	client, _ := ctx.Value(ClientKey).(string)
	return client
}
