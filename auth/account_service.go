package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-gateway/accounts"
	apperrors "github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/utils"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenIssuer signs a token for an account whose credentials were verified.
type TokenIssuer interface {
	Issue(ctx context.Context, email string) (*token.IssuedToken, error)
}

var _ TokenIssuer = (*token.Issuer)(nil)

// AccountService registers accounts and exchanges credentials for tokens.
//
// Policy failures come back inside RegisterResult, bad credentials as an
// unsuccessful LoginResult, and only infrastructure failures as errors.
type AccountService struct {
	store  accounts.Store
	issuer TokenIssuer
	logger zerolog.Logger
}

// AccountServiceOption defines a function type to modify the AccountService instance.
type AccountServiceOption func(*AccountService)

// WithLogger replaces the global zerolog logger
func WithLogger(logger zerolog.Logger) AccountServiceOption {
	return func(as *AccountService) {
		as.logger = logger
	}
}

// NewAccountService initializes a new AccountService with required dependencies.
func NewAccountService(store accounts.Store, issuer TokenIssuer, options ...AccountServiceOption) (*AccountService, error) {
	if store == nil {
		return nil, errors.New("[NewAccountService] store is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewAccountService] issuer is required")
	}

	as := &AccountService{
		store:  store,
		issuer: issuer,
		logger: log.Logger,
	}

	for _, opt := range options {
		opt(as)
	}

	return as, nil
}

// Register creates a confirmed account with lockout disabled.
func (as *AccountService) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if reasons := req.Validate(); len(reasons) > 0 {
		return registerFailed(reasons), nil
	}

	account := &accounts.Account{
		Email:          req.Email,
		Username:       req.Username,
		EmailConfirmed: true,
	}

	if err := as.store.CreateAccount(ctx, account, req.Password); err != nil {
		if reasons, ok := accounts.PolicyReasons(err); ok {
			as.logger.Debug().Int("reasons", len(reasons)).Msg("registration rejected")
			return registerFailed(reasons), nil
		}
		return RegisterResult{}, errors.Wrap(err, "[AccountService.Register] CreateAccount")
	}

	if err := as.store.SetLockoutEnabled(ctx, account, false); err != nil {
		return RegisterResult{}, apperrors.Wrapf(err, "[AccountService.Register] account %s: %w", account.ID, ErrAccountSetup)
	}

	as.logger.Info().Str("account_id", account.ID).Msg("account registered")
	return RegisterResult{Succeeded: true, Errors: []string{}}, nil
}

// Login verifies the credentials and issues a token. An unknown email and a
// wrong password produce the same unsuccessful result.
func (as *AccountService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	account, err := as.store.FindByEmail(ctx, req.Email)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return LoginResult{}, nil
	}
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "[AccountService.Login] FindByEmail")
	}

	verified, err := as.store.VerifyPassword(ctx, account, req.Password, false)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "[AccountService.Login] VerifyPassword")
	}
	if !verified {
		return LoginResult{}, nil
	}

	issued, err := as.issuer.Issue(ctx, account.Email)
	if err != nil {
		return LoginResult{}, apperrors.Wrapf(err, "[AccountService.Login] %w", ErrTokenIssuance)
	}
	if issued == nil || issued.Token == "" {
		return LoginResult{}, errors.Wrap(ErrTokenIssuance, "[AccountService.Login] empty token")
	}

	as.logger.Debug().Str("account_id", account.ID).Str("jti", issued.TokenID).Msg("token issued")
	return LoginResult{
		Succeeded: true,
		Token:     utils.Ptr(issued.Token),
		ExpiresAt: utils.Ptr(issued.ExpiresAt),
	}, nil
}
