package accounts_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Sup3rSecret"

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := accounts.NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash(testPassword)
	require.NoError(t, err)
	require.NotEqual(t, testPassword, hash)

	ok, err := h.Verify(testPassword, hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBcryptHasher_CorruptHash(t *testing.T) {
	h := accounts.NewBcryptHasher(bcrypt.MinCost)

	ok, err := h.Verify(testPassword, "not-a-bcrypt-hash")
	require.Error(t, err)
	require.False(t, ok)
}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	h := &accounts.Argon2Hasher{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	hash, err := h.Hash(testPassword)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := h.Verify(testPassword, hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)

	// Two hashes of the same password differ by salt
	other, err := h.Hash(testPassword)
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}

func TestArgon2Hasher_InvalidEncodings(t *testing.T) {
	h := accounts.NewArgon2Hasher()

	tests := []struct {
		name string
		hash string
	}{
		{"too few parts", "$argon2id$v=19$m=1,t=1,p=1$salt"},
		{"wrong algorithm", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$v=x$m=1,t=1,p=1$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=x$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA"},
		{"zero parallelism", "$argon2id$v=19$m=65536,t=3,p=0$c2FsdA$aGFzaA"},
		{"zero iterations", "$argon2id$v=19$m=65536,t=0,p=1$c2FsdA$aGFzaA"},
		{"zero memory", "$argon2id$v=19$m=0,t=3,p=1$c2FsdA$aGFzaA"},
		{"parallelism overflow", "$argon2id$v=19$m=65536,t=3,p=256$c2FsdA$aGFzaA"},
		{"empty hash", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ok, err := h.Verify(testPassword, test.hash)
			require.Error(t, err)
			require.False(t, ok)
		})
	}
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := accounts.NewPasswordHasher("", 0)
	require.NoError(t, err)
	require.IsType(t, &accounts.BcryptHasher{}, h)

	h, err = accounts.NewPasswordHasher("ARGON2", 0)
	require.NoError(t, err)
	require.IsType(t, &accounts.Argon2Hasher{}, h)

	_, err = accounts.NewPasswordHasher("md5", 0)
	require.Error(t, err)
}
