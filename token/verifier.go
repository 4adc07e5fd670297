package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/utils"
	"github.com/pkg/errors"
)

// Principal is the identity carried by a verified token.
type Principal struct {
	Subject   string        `json:"sub"`
	Email     string        `json:"email"`
	TokenID   string        `json:"jti"`
	Roles     []string      `json:"roles"`
	IssuedAt  time.Time     `json:"iat"`
	ExpiresAt time.Time     `json:"exp"`
	Claims    jwt.MapClaims `json:"-"`
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier checks tokens produced with the same SigningConfig.
type Verifier struct {
	config  SigningConfig
	leeway  time.Duration
	nowTime func() time.Time
}

type VerifierOption func(*Verifier)

// WithLeeway allows for clock skew when checking exp, nbf and iat
func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leeway = leeway
	}
}

// WithVerifierNowTime sets the now time function (primarily for testing)
func WithVerifierNowTime(nowFunc func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowTime = nowFunc
	}
}

func NewVerifier(config SigningConfig, options ...VerifierOption) (*Verifier, error) {
	if !config.valid() {
		return nil, errors.New("[NewVerifier] signing config is not initialised")
	}
	v := &Verifier{
		config:  config,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature, algorithm, issuer, audience and validity
// window of raw. Expired tokens return ErrTokenExpired, every other
// rejection returns ErrInvalidToken.
func (v *Verifier) Verify(raw string) (*Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrMissingToken
	}

	parser := jwt.NewParser(v.parserOptions()...)
	parsed, err := parser.Parse(raw, v.config.Signer().GetVerificationKey)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(apperrors.ErrTokenExpired, err.Error())
		}
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	return principalFromClaims(claims)
}

func (v *Verifier) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.config.Signer().GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.nowTime),
	}
	if v.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.leeway))
	}
	if v.config.Issuer() != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer()))
	}
	if v.config.Audience() != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience()))
	}
	return opts
}

func principalFromClaims(claims jwt.MapClaims) (*Principal, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "missing subject")
	}

	p := &Principal{
		Subject: sub,
		Claims:  claims,
	}
	p.Email, _ = claims[ClaimEmail].(string)
	p.TokenID, _ = claims[ClaimTokenID].(string)

	switch roles := claims[ClaimRole].(type) {
	case string:
		p.Roles = []string{roles}
	case []any:
		p.Roles = utils.ToStringSlice(roles)
	default:
		p.Roles = []string{}
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Time.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time.UTC()
	}
	return p, nil
}
