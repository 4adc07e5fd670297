package auth

import "time"

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"pwd"`
	Username string `json:"username"`
}

// RegisterResult reports the outcome of a registration. Errors is non-empty
// exactly when Succeeded is false.
type RegisterResult struct {
	Succeeded bool     `json:"success"`
	Errors    []string `json:"errors"`
}

// LoginRequest carries the credentials to verify.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"pwd"`
}

// LoginResult reports the outcome of a login. Token and ExpiresAt are set
// together, and only when Succeeded is true.
type LoginResult struct {
	Succeeded bool       `json:"success"`
	Token     *string    `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expireDate,omitempty"`
}

func registerFailed(reasons []string) RegisterResult {
	if len(reasons) == 0 {
		reasons = []string{"account could not be created"}
	}
	return RegisterResult{Errors: reasons}
}
