package accounts

import "context"

// Store is the credential store capability consumed by the account service and
// the token issuer. Implementations own password hashing and persistence.
//
// CreateAccount assigns the account ID and returns a *PolicyError when the
// account violates creation rules (duplicate email, weak password, ...).
// FindByEmail returns ErrAccountNotFound when no account matches.
type Store interface {
	CreateAccount(ctx context.Context, account *Account, password string) error
	SetLockoutEnabled(ctx context.Context, account *Account, enabled bool) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	VerifyPassword(ctx context.Context, account *Account, password string, trackFailures bool) (bool, error)
	GetClaims(ctx context.Context, account *Account) ([]Claim, error)
	GetRoles(ctx context.Context, account *Account) ([]string, error)
}

// ClaimsReader is the read side of Store needed to build a token.
type ClaimsReader interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	GetClaims(ctx context.Context, account *Account) ([]Claim, error)
	GetRoles(ctx context.Context, account *Account) ([]string, error)
}

var _ ClaimsReader = Store(nil)
