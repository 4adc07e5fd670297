package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_HMAC(t *testing.T) {
	tests := []struct {
		name      string
		settings  token.SignerSettings
		expectAlg string
		expectErr bool
	}{
		{"default algorithm", token.SignerSettings{Secret: secretStr}, "HS256", false},
		{"HS384", token.SignerSettings{Algorithm: "hs384", Secret: secretStr}, "HS384", false},
		{"HS512", token.SignerSettings{Algorithm: "HS512", Secret: secretStr}, "HS512", false},
		{"short secret", token.SignerSettings{Algorithm: "HS256", Secret: "1234"}, "", true},
		{"unsupported", token.SignerSettings{Algorithm: "PS256", Secret: secretStr}, "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			signer, err := token.NewSigner(test.settings)
			if test.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expectAlg, signer.GetSigningMethod().Alg())
		})
	}
}

func TestNewSigner_RSAFromPEM(t *testing.T) {
	keyPair, err := token.GenerateRSAKeyPair("key-1", "RS256", 2048)
	require.NoError(t, err)
	privatePEM, err := keyPair.ExportPrivateKeyPEM()
	require.NoError(t, err)

	signer, err := token.NewSigner(token.SignerSettings{Algorithm: "RS256", PrivateKeyPEM: privatePEM, KeyID: "key-1"})
	require.NoError(t, err)
	require.Equal(t, "RS256", signer.GetSigningMethod().Alg())

	provider, ok := signer.(token.JWKSProvider)
	require.True(t, ok)
	jwks, err := provider.GetJWKS()
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
	require.Equal(t, "key-1", jwks.Keys[0].Kid)
	require.Equal(t, "AQAB", jwks.Keys[0].E)

	assertIssueAndVerify(t, signer)

	// The RSA key cannot be used for an ECDSA algorithm
	_, err = token.NewSigner(token.SignerSettings{Algorithm: "ES256", PrivateKeyPEM: privatePEM})
	require.Error(t, err)
}

func TestNewSigner_EphemeralECDSA(t *testing.T) {
	signer, err := token.NewSigner(token.SignerSettings{Algorithm: "ES384", KeyID: "ec-1"})
	require.NoError(t, err)
	require.Equal(t, "ES384", signer.GetSigningMethod().Alg())

	jwks, err := signer.(token.JWKSProvider).GetJWKS()
	require.NoError(t, err)
	require.Equal(t, "EC", jwks.Keys[0].Kty)
	require.Equal(t, "P-384", jwks.Keys[0].Crv)
	require.Len(t, jwks.Keys[0].X, 64) // 48 bytes base64url without padding

	assertIssueAndVerify(t, signer)
}

func TestLoadKeyPairFromPEM_Errors(t *testing.T) {
	_, err := token.LoadKeyPairFromPEM("k", "not pem", "RS256")
	require.Error(t, err)

	keyPair, err := token.GenerateECDSAKeyPair("k", "ES256")
	require.NoError(t, err)
	privatePEM, err := keyPair.ExportPrivateKeyPEM()
	require.NoError(t, err)

	_, err = token.LoadKeyPairFromPEM("k", privatePEM, "ES384")
	require.Error(t, err)

	loaded, err := token.LoadKeyPairFromPEM("k", privatePEM, "ES256")
	require.NoError(t, err)
	publicPEM, err := loaded.ExportPublicKeyPEM()
	require.NoError(t, err)
	require.Contains(t, publicPEM, "BEGIN PUBLIC KEY")

	_, err = token.GenerateECDSAKeyPair("k", "RS256")
	require.Error(t, err)
	_, err = token.GenerateRSAKeyPair("k", "ES256", 2048)
	require.Error(t, err)
}

// TestKeyPairSigner_RejectsOtherKeyID tests kid pinning on verification
func TestKeyPairSigner_RejectsOtherKeyID(t *testing.T) {
	first, err := token.NewSigner(token.SignerSettings{Algorithm: "ES256", KeyID: "first"})
	require.NoError(t, err)
	second, err := token.NewSigner(token.SignerSettings{Algorithm: "ES256", KeyID: "second"})
	require.NoError(t, err)

	f := setupTestFixture(t)
	firstConfig, err := token.NewSigningConfig(issuer, audience, first, expirationSeconds)
	require.NoError(t, err)
	secondConfig, err := token.NewSigningConfig(issuer, audience, second, expirationSeconds)
	require.NoError(t, err)

	i, err := token.NewIssuer(f.store, firstConfig, token.WithNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	issued, err := i.Issue(context.Background(), testUserEmail)
	require.NoError(t, err)

	v, err := token.NewVerifier(secondConfig, token.WithVerifierNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	_, err = v.Verify(issued.Token)
	require.Error(t, err)
}

func assertIssueAndVerify(t *testing.T, signer token.Signer) {
	t.Helper()

	f := setupTestFixture(t)
	config, err := token.NewSigningConfig(issuer, audience, signer, expirationSeconds)
	require.NoError(t, err)

	i, err := token.NewIssuer(f.store, config, token.WithNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	issued, err := i.Issue(context.Background(), testUserEmail)
	require.NoError(t, err)

	v, err := token.NewVerifier(config, token.WithVerifierNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	principal, err := v.Verify(issued.Token)
	require.NoError(t, err)
	require.Equal(t, f.account.ID, principal.Subject)
}
