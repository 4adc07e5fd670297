package token

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// maxExpirationSeconds keeps Lifetime within time.Duration.
const maxExpirationSeconds = math.MaxInt64 / int64(time.Second)

// SigningConfig holds the issuer, audience, key and lifetime used for every
// issued token. It is built once and has no setters.
type SigningConfig struct {
	issuer            string
	audience          string
	signer            Signer
	expirationSeconds int64
}

func NewSigningConfig(issuer, audience string, signer Signer, expirationSeconds int64) (SigningConfig, error) {
	if signer == nil {
		return SigningConfig{}, errors.New("[NewSigningConfig] signer is required")
	}
	if expirationSeconds <= 0 {
		return SigningConfig{}, errors.Errorf("[NewSigningConfig] expiration must be positive, got %d", expirationSeconds)
	}
	if expirationSeconds > maxExpirationSeconds {
		return SigningConfig{}, errors.Errorf("[NewSigningConfig] expiration must be at most %d seconds, got %d", maxExpirationSeconds, expirationSeconds)
	}
	return SigningConfig{
		issuer:            issuer,
		audience:          audience,
		signer:            signer,
		expirationSeconds: expirationSeconds,
	}, nil
}

func (c SigningConfig) Issuer() string           { return c.issuer }
func (c SigningConfig) Audience() string         { return c.audience }
func (c SigningConfig) Signer() Signer           { return c.signer }
func (c SigningConfig) ExpirationSeconds() int64 { return c.expirationSeconds }

// Lifetime is the expiration as a duration.
func (c SigningConfig) Lifetime() time.Duration {
	return time.Duration(c.expirationSeconds) * time.Second
}

func (c SigningConfig) valid() bool {
	return c.signer != nil && c.expirationSeconds > 0
}
