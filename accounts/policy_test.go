package accounts_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidateNewAccount(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		username string
		password string
		reasons  []string
	}{
		{
			name:     "valid account",
			email:    "jane@example.com",
			username: "jane",
			password: "Passw0rdOK",
			reasons:  []string{},
		},
		{
			name:     "missing email and username",
			password: "Passw0rdOK",
			reasons:  []string{"email: cannot be blank", "username: cannot be blank"},
		},
		{
			name:     "malformed email",
			email:    "not-an-email",
			username: "jane",
			password: "Passw0rdOK",
			reasons:  []string{"email: must be a valid email address"},
		},
		{
			name:     "weak password reports every rule",
			email:    "jane@example.com",
			username: "jane",
			password: "abc",
			reasons: []string{
				"password must be at least 8 characters long",
				"password must contain at least one uppercase letter",
				"password must contain at least one number",
			},
		},
		{
			name:     "password at the 72 byte limit",
			email:    "jane@example.com",
			username: "jane",
			password: "Aa1" + strings.Repeat("x", 69),
			reasons:  []string{},
		},
		{
			name:     "password over the 72 byte limit",
			email:    "jane@example.com",
			username: "jane",
			password: "Aa1" + strings.Repeat("x", 70),
			reasons:  []string{"password must be at most 72 bytes long"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.reasons, accounts.ValidateNewAccount(test.email, test.username, test.password))
		})
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, accounts.ValidatePasswordStrength("Passw0rdOK"))
	require.EqualError(t, accounts.ValidatePasswordStrength("PASSWORD1"), "password must contain at least one lowercase letter")
	require.EqualError(t, accounts.ValidatePasswordStrength(""), "password must be at least 8 characters long")
}

func TestPolicyReasons(t *testing.T) {
	require.Nil(t, accounts.NewPolicyError())

	err := errors.Wrap(accounts.NewPolicyError("first", "second"), "wrapped")
	reasons, ok := accounts.PolicyReasons(err)
	require.True(t, ok)
	require.Equal(t, []string{"first", "second"}, reasons)

	_, ok = accounts.PolicyReasons(errors.New("plain"))
	require.False(t, ok)
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "jane@example.com", accounts.NormalizeEmail("  Jane@Example.COM "))
}
