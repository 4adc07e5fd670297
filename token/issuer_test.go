package token_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-gateway/accounts"
	fakeaccountstore "github.com/jrsteele09/go-auth-gateway/accounts/repofake"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	secretStr         = "0123456789abcdef0123456789abcdef"
	issuer            = "com.testissuer"
	audience          = "api"
	expirationSeconds = 3600
	testUserEmail     = "john.doe@example.com"
	testUsername      = "john"
	testUserPassword  = "Passw0rdOK"
)

var fixedNow = time.Date(2025, time.March, 1, 12, 30, 15, 500, time.UTC)

// testFixture holds all test dependencies
type testFixture struct {
	store   *fakeaccountstore.FakeAccountStore
	account *accounts.Account
	config  token.SigningConfig
	issuer  *token.Issuer
}

// setupTestFixture creates a store holding one account and an HMAC issuer
func setupTestFixture(t *testing.T, options ...token.IssuerOption) *testFixture {
	t.Helper()

	store := fakeaccountstore.NewFakeAccountStore(accounts.NewBcryptHasher(bcrypt.MinCost))
	account := &accounts.Account{Email: testUserEmail, Username: testUsername, EmailConfirmed: true}
	require.NoError(t, store.CreateAccount(context.Background(), account, testUserPassword))

	config, err := token.NewSigningConfig(issuer, audience, token.NewHMACSigner(secretStr), expirationSeconds)
	require.NoError(t, err)

	options = append([]token.IssuerOption{token.WithNowTime(func() time.Time { return fixedNow })}, options...)
	tokenIssuer, err := token.NewIssuer(store, config, options...)
	require.NoError(t, err)

	return &testFixture{
		store:   store,
		account: account,
		config:  config,
		issuer:  tokenIssuer,
	}
}

func (f *testFixture) verifier(t *testing.T) *token.Verifier {
	t.Helper()
	v, err := token.NewVerifier(f.config, token.WithVerifierNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return v
}

func parseUnverified(t *testing.T, raw string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, parts, err := jwt.NewParser().ParseUnverified(raw, claims)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	return claims
}

// TestIssue_Claims tests the claim set and validity window of an issued token
func TestIssue_Claims(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.AddClaim(testUserEmail, accounts.Claim{Type: "department", Value: "eng"}))
	require.NoError(t, f.store.AddRole(testUserEmail, "admin"))
	require.NoError(t, f.store.AddRole(testUserEmail, "writer"))

	issued, err := f.issuer.Issue(context.Background(), testUserEmail)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	expectedIssuedAt := fixedNow.Truncate(time.Second)
	require.Equal(t, expectedIssuedAt, issued.IssuedAt)
	require.Equal(t, expectedIssuedAt.Add(expirationSeconds*time.Second), issued.ExpiresAt)

	claims := parseUnverified(t, issued.Token)
	require.Equal(t, f.account.ID, claims["sub"])
	require.Equal(t, testUserEmail, claims["email"])
	require.Equal(t, issued.TokenID, claims["jti"])
	require.Equal(t, "eng", claims["department"])
	require.Equal(t, []any{"admin", "writer"}, claims["role"])
	require.Equal(t, issuer, claims["iss"])
	require.Equal(t, audience, claims["aud"])

	nbf, err := claims.GetNotBefore()
	require.NoError(t, err)
	iat, err := claims.GetIssuedAt()
	require.NoError(t, err)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.True(t, nbf.Time.Equal(expectedIssuedAt))
	require.True(t, iat.Time.Equal(expectedIssuedAt))
	require.True(t, exp.Time.Equal(issued.ExpiresAt))
}

// TestIssue_SingleRoleIsScalar tests that a lone role is encoded as a plain string
func TestIssue_SingleRoleIsScalar(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.AddRole(testUserEmail, "reader"))

	issued, err := f.issuer.Issue(context.Background(), testUserEmail)
	require.NoError(t, err)
	require.Equal(t, "reader", parseUnverified(t, issued.Token)["role"])
}

// TestIssue_FreshTokenIDs tests that each issuance gets its own token id
func TestIssue_FreshTokenIDs(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.issuer.Issue(context.Background(), testUserEmail)
	require.NoError(t, err)
	second, err := f.issuer.Issue(context.Background(), testUserEmail)
	require.NoError(t, err)

	require.NotEqual(t, first.TokenID, second.TokenID)
	require.NotEqual(t, first.Token, second.Token)
}

func TestBuildClaims_Order(t *testing.T) {
	account := &accounts.Account{ID: "acc-1", Email: "a@example.com"}
	issuedAt := time.Unix(1700000000, 0).UTC()
	persisted := []accounts.Claim{
		{Type: "department", Value: "eng"},
		{Type: "sub", Value: "spoofed"},
		{Type: "department", Value: "ops"},
	}

	claims := token.BuildClaims(account, persisted, []string{"admin", "auditor"}, "jti-1", issuedAt)

	require.Equal(t, []token.Claim{
		{Type: "department", Value: "eng"},
		{Type: "department", Value: "ops"},
		{Type: "sub", Value: "acc-1"},
		{Type: "email", Value: "a@example.com"},
		{Type: "jti", Value: "jti-1"},
		{Type: "nbf", Value: int64(1700000000)},
		{Type: "iat", Value: int64(1700000000)},
		{Type: "role", Value: "admin"},
		{Type: "role", Value: "auditor"},
	}, claims)
}

type failingSigner struct{}

func (failingSigner) Sign(jwt.MapClaims) (string, error) {
	return "", errors.New("key misconfigured")
}

func (failingSigner) GetVerificationKey(*jwt.Token) (any, error) {
	return nil, errors.New("key misconfigured")
}

func (failingSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// TestIssue_FailsClosed tests that no token is produced when any step fails
func TestIssue_FailsClosed(t *testing.T) {
	boom := errors.New("store unavailable")

	tests := []struct {
		name    string
		arrange func(t *testing.T, f *testFixture) *token.Issuer
		target  error
	}{
		{
			name: "account vanished before issuance",
			arrange: func(t *testing.T, f *testFixture) *token.Issuer {
				require.NoError(t, f.store.Delete(testUserEmail))
				return f.issuer
			},
			target: accounts.ErrAccountNotFound,
		},
		{
			name: "claims fetch fails",
			arrange: func(t *testing.T, f *testFixture) *token.Issuer {
				f.store.ClaimsErr = boom
				return f.issuer
			},
			target: boom,
		},
		{
			name: "roles fetch fails",
			arrange: func(t *testing.T, f *testFixture) *token.Issuer {
				f.store.RolesErr = boom
				return f.issuer
			},
			target: boom,
		},
		{
			name: "token id generation fails",
			arrange: func(t *testing.T, f *testFixture) *token.Issuer {
				i, err := token.NewIssuer(f.store, f.config, token.WithTokenIDGenerator(func() (string, error) {
					return "", boom
				}))
				require.NoError(t, err)
				return i
			},
			target: boom,
		},
		{
			name: "signing fails",
			arrange: func(t *testing.T, f *testFixture) *token.Issuer {
				config, err := token.NewSigningConfig(issuer, audience, failingSigner{}, expirationSeconds)
				require.NoError(t, err)
				i, err := token.NewIssuer(f.store, config)
				require.NoError(t, err)
				return i
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := setupTestFixture(t)
			i := test.arrange(t, f)

			issued, err := i.Issue(context.Background(), testUserEmail)
			require.Error(t, err)
			require.Nil(t, issued)
			if test.target != nil {
				require.ErrorIs(t, err, test.target)
			}
		})
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	f := setupTestFixture(t)

	_, err := token.NewIssuer(nil, f.config)
	require.Error(t, err)

	_, err = token.NewIssuer(f.store, token.SigningConfig{})
	require.Error(t, err)
}

func TestNewSigningConfig_Validation(t *testing.T) {
	_, err := token.NewSigningConfig(issuer, audience, nil, expirationSeconds)
	require.Error(t, err)

	_, err = token.NewSigningConfig(issuer, audience, token.NewHMACSigner(secretStr), 0)
	require.Error(t, err)

	maxSeconds := int64(math.MaxInt64 / int64(time.Second))
	_, err = token.NewSigningConfig(issuer, audience, token.NewHMACSigner(secretStr), maxSeconds+1)
	require.Error(t, err)

	longLived, err := token.NewSigningConfig(issuer, audience, token.NewHMACSigner(secretStr), maxSeconds)
	require.NoError(t, err)
	require.Positive(t, longLived.Lifetime())
	require.Equal(t, maxSeconds, int64(longLived.Lifetime()/time.Second))

	config, err := token.NewSigningConfig(issuer, audience, token.NewHMACSigner(secretStr), 90)
	require.NoError(t, err)
	require.Equal(t, issuer, config.Issuer())
	require.Equal(t, audience, config.Audience())
	require.Equal(t, int64(90), config.ExpirationSeconds())
	require.Equal(t, 90*time.Second, config.Lifetime())
}
