package server

// Route path constants
const (
	RouteRegister = "/register"
	RouteLogin    = "/login"
	RouteMe       = "/me"
	RouteHealth   = "/health"

	// API Routes
	RouteAPIValidatePassword = "/api/validate-password"

	RouteWellKnownJWKS = "/.well-known/jwks.json"
)
