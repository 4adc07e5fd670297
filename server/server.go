package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-gateway/auth"
	"github.com/jrsteele09/go-auth-gateway/internal/config"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AccountService is the account flow the HTTP layer exposes.
type AccountService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
}

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(raw string) (*token.Principal, error)
}

var (
	_ AccountService = (*auth.AccountService)(nil)
	_ TokenVerifier  = (*token.Verifier)(nil)
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	accounts AccountService
	verifier TokenVerifier
	jwks     token.JWKSProvider // nil for symmetric signers
}

func New(config config.Config, accounts AccountService, verifier TokenVerifier, signer token.Signer) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if accounts == nil {
		return nil, errors.New("[Server New] account service is required")
	}
	if verifier == nil {
		return nil, errors.New("[Server New] verifier is required")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		accounts: accounts,
		verifier: verifier,
	}
	if provider, ok := signer.(token.JWKSProvider); ok {
		s.jwks = provider
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
