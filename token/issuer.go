package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/pkg/errors"
)

// Claim types written by the issuer.
const (
	ClaimSubject   = "sub"
	ClaimEmail     = "email"
	ClaimTokenID   = "jti"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
	ClaimRole      = "role"
)

// Persisted claims of these types are dropped so the issuer's values are the only ones.
var reservedClaimTypes = map[string]struct{}{
	ClaimSubject:   {},
	ClaimEmail:     {},
	ClaimTokenID:   {},
	ClaimNotBefore: {},
	ClaimIssuedAt:  {},
	ClaimExpiresAt: {},
	ClaimIssuer:    {},
	ClaimAudience:  {},
}

// Claim is one entry of a token's claim set in assembly order.
type Claim struct {
	Type  string
	Value any
}

// IssuedToken is a signed compact JWT and its validity window.
type IssuedToken struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer builds and signs access tokens for verified accounts.
type Issuer struct {
	reader     accounts.ClaimsReader
	config     SigningConfig
	nowTime    func() time.Time
	newTokenID func() (string, error)
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// WithTokenIDGenerator replaces the jti generator (primarily for testing)
func WithTokenIDGenerator(gen func() (string, error)) IssuerOption {
	return func(i *Issuer) {
		i.newTokenID = gen
	}
}

func NewIssuer(reader accounts.ClaimsReader, config SigningConfig, options ...IssuerOption) (*Issuer, error) {
	if reader == nil {
		return nil, errors.New("[NewIssuer] claims reader is required")
	}
	if !config.valid() {
		return nil, errors.New("[NewIssuer] signing config is not initialised")
	}

	issuer := &Issuer{
		reader:     reader,
		config:     config,
		nowTime:    time.Now,
		newTokenID: newUUIDTokenID,
	}

	for _, opt := range options {
		opt(issuer)
	}

	return issuer, nil
}

// Issue re-reads the account registered under email and returns a signed
// token for it. Any failure returns an error and no token.
func (i *Issuer) Issue(ctx context.Context, email string) (*IssuedToken, error) {
	account, err := i.reader.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] FindByEmail")
	}

	persisted, err := i.reader.GetClaims(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] GetClaims")
	}

	roles, err := i.reader.GetRoles(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] GetRoles")
	}

	tokenID, err := i.newTokenID()
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] newTokenID")
	}

	issuedAt := i.nowTime().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.config.Lifetime())

	claims := BuildClaims(account, persisted, roles, tokenID, issuedAt)
	mapClaims := toMapClaims(claims)
	if i.config.Issuer() != "" {
		mapClaims[ClaimIssuer] = i.config.Issuer()
	}
	if i.config.Audience() != "" {
		mapClaims[ClaimAudience] = i.config.Audience()
	}
	mapClaims[ClaimExpiresAt] = expiresAt.Unix()

	signed, err := i.config.Signer().Sign(mapClaims)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] Sign")
	}
	if signed == "" {
		return nil, errors.New("[Issuer.Issue] signer returned an empty token")
	}

	return &IssuedToken{
		Token:     signed,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// BuildClaims assembles the claim set in its fixed order: persisted claims,
// sub, email, jti, nbf, iat, then one role claim per role.
func BuildClaims(account *accounts.Account, persisted []accounts.Claim, roles []string, tokenID string, issuedAt time.Time) []Claim {
	claims := make([]Claim, 0, len(persisted)+5+len(roles))
	for _, c := range persisted {
		if _, reserved := reservedClaimTypes[c.Type]; reserved {
			continue
		}
		claims = append(claims, Claim{Type: c.Type, Value: c.Value})
	}

	claims = append(claims,
		Claim{Type: ClaimSubject, Value: account.ID},
		Claim{Type: ClaimEmail, Value: account.Email},
		Claim{Type: ClaimTokenID, Value: tokenID},
		Claim{Type: ClaimNotBefore, Value: issuedAt.Unix()},
		Claim{Type: ClaimIssuedAt, Value: issuedAt.Unix()},
	)

	for _, role := range roles {
		claims = append(claims, Claim{Type: ClaimRole, Value: role})
	}
	return claims
}

// toMapClaims folds repeated claim types into arrays, preserving order.
func toMapClaims(claims []Claim) jwt.MapClaims {
	mc := jwt.MapClaims{}
	for _, c := range claims {
		existing, ok := mc[c.Type]
		if !ok {
			mc[c.Type] = c.Value
			continue
		}
		if values, isSlice := existing.([]any); isSlice {
			mc[c.Type] = append(values, c.Value)
		} else {
			mc[c.Type] = []any{existing, c.Value}
		}
	}
	return mc
}

func newUUIDTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
