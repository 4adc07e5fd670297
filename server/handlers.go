package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/jrsteele09/go-auth-gateway/auth"
	apperrors "github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 1 << 20
)

// RegisterHandler creates an account from {"email","pwd","username"}
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, auth.RegisterResult{Errors: []string{err.Error()}})
			return
		}

		result, err := s.accounts.Register(r.Context(), req)
		if err != nil {
			log.Error().Err(err).Msg("registration failed")
			writeJSON(w, http.StatusInternalServerError, auth.RegisterResult{Errors: []string{apperrors.ErrInternal.Error()}})
			return
		}
		if !result.Succeeded {
			writeJSON(w, http.StatusBadRequest, result)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// LoginHandler exchanges {"email","pwd"} for a signed token
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, auth.LoginResult{})
			return
		}
		if err := req.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, auth.LoginResult{})
			return
		}

		result, err := s.accounts.Login(r.Context(), req)
		if err != nil {
			log.Error().Err(err).Msg("login failed")
			writeJSON(w, http.StatusInternalServerError, auth.LoginResult{})
			return
		}
		if !result.Succeeded {
			writeJSON(w, http.StatusUnauthorized, result)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// MeResponse describes the caller's verified token
type MeResponse struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

// MeHandler returns the principal of the bearer token. Requires RequireAuth.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, "invalid_token", apperrors.ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, MeResponse{
			Subject:   principal.Subject,
			Email:     principal.Email,
			Roles:     principal.Roles,
			TokenID:   principal.TokenID,
			ExpiresAt: principal.ExpiresAt,
		})
	}
}

// JWKSHandler returns the public keys used to verify tokens
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.jwks == nil {
			writeJSONError(w, "not_found", apperrors.ErrUnsupported.Error(), http.StatusNotFound)
			return
		}

		jwks, err := s.jwks.GetJWKS()
		if err != nil {
			log.Error().Err(err).Msg("failed to build JWKS")
			writeJSONError(w, "server_error", apperrors.ErrInternal.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, jwks)
	}
}

type validatePasswordRequest struct {
	Password string `json:"password"`
}

type validatePasswordResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ValidatePasswordHandler reports the first unmet password requirement
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validatePasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if req.Password == "" {
			writeJSON(w, http.StatusOK, validatePasswordResponse{Message: "password is required"})
			return
		}

		if err := accounts.ValidatePasswordStrength(req.Password); err != nil {
			writeJSON(w, http.StatusOK, validatePasswordResponse{Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, validatePasswordResponse{Valid: true})
	}
}

// HealthHandler reports liveness
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return apperrors.ErrInvalidRequest
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// writeJSONError writes an error response in the OAuth2 error shape
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
