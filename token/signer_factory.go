package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const minHMACSecretLength = 32

// SignerSettings describes the key material used to sign tokens.
type SignerSettings struct {
	Algorithm     string // HS256, HS384, HS512, RS256, RS384, RS512, ES256, ES384, ES512
	Secret        string // HMAC secret
	PrivateKeyPEM string // RSA/ECDSA private key
	KeyID         string // kid header for asymmetric keys
}

// NewSigner builds a Signer from settings. An asymmetric algorithm without a
// private key gets a freshly generated key pair that lives for the process.
func NewSigner(settings SignerSettings) (Signer, error) {
	algorithm := strings.ToUpper(strings.TrimSpace(settings.Algorithm))
	if algorithm == "" {
		algorithm = "HS256"
	}

	switch algorithm {
	case "HS256", "HS384", "HS512":
		if len(settings.Secret) < minHMACSecretLength {
			return nil, errors.Errorf("[NewSigner] %s secret must be at least %d bytes", algorithm, minHMACSecretLength)
		}
		method, _ := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
		return NewHMACSignerWithMethod(settings.Secret, method), nil

	case "RS256", "RS384", "RS512", "ES256", "ES384", "ES512":
		if settings.PrivateKeyPEM != "" {
			keyPair, err := LoadKeyPairFromPEM(settings.KeyID, settings.PrivateKeyPEM, algorithm)
			if err != nil {
				return nil, errors.Wrap(err, "[NewSigner] LoadKeyPairFromPEM")
			}
			return NewKeyPairSigner(keyPair), nil
		}

		log.Warn().Str("alg", algorithm).Str("kid", settings.KeyID).Msg("No private key configured, generating an ephemeral signing key")
		keyPair, err := generateKeyPair(settings.KeyID, algorithm)
		if err != nil {
			return nil, errors.Wrap(err, "[NewSigner] generateKeyPair")
		}
		return NewKeyPairSigner(keyPair), nil

	default:
		return nil, errors.Errorf("[NewSigner] unsupported signing algorithm: %s", settings.Algorithm)
	}
}

func generateKeyPair(keyID, algorithm string) (*KeyPair, error) {
	switch algorithm {
	case "RS256":
		return GenerateRSAKeyPair(keyID, algorithm, 2048)
	case "RS384":
		return GenerateRSAKeyPair(keyID, algorithm, 3072)
	case "RS512":
		return GenerateRSAKeyPair(keyID, algorithm, 4096)
	default:
		return GenerateECDSAKeyPair(keyID, algorithm)
	}
}
