package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the verified token principal
	ContextKeyPrincipal ContextKey = "principal"
)

// RequireAuth is middleware that validates a Bearer token and stores the
// resulting principal in the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				writeJSONError(w, "invalid_token", err.Error(), http.StatusUnauthorized)
				return
			}

			principal, err := s.verifier.Verify(raw)
			if err != nil {
				description := apperrors.ErrInvalidToken.Error()
				if apperrors.Is(err, apperrors.ErrTokenExpired) {
					description = apperrors.ErrTokenExpired.Error()
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token rejected")
				writeJSONError(w, "invalid_token", description, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next(w, r.WithContext(ctx))
		}
	}
}

// PrincipalFromContext returns the principal stored by RequireAuth
func PrincipalFromContext(ctx context.Context) (*token.Principal, bool) {
	principal, ok := ctx.Value(ContextKeyPrincipal).(*token.Principal)
	return principal, ok && principal != nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.ErrMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}
