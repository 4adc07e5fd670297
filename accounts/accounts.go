package accounts

import (
	"strings"
	"time"
)

// Account is a registered user identity. The password hash is owned by the
// Store implementation and is never part of this struct.
type Account struct {
	ID                string    `json:"id,omitempty"`       // Opaque stable identifier
	Email             string    `json:"email,omitempty"`    // Email address as supplied at registration
	Username          string    `json:"username,omitempty"` // Display/login name
	EmailConfirmed    bool      `json:"email_confirmed"`    // No verification flow exists, set at creation
	LockoutEnabled    bool      `json:"lockout_enabled"`    // Whether failed attempts are tracked
	AccessFailedCount int       `json:"access_failed_count,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// Claim is a typed fact attached to an account and embedded in issued tokens.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NormalizeEmail returns the lookup key used for case-insensitive email comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername returns the lookup key used for username uniqueness.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Clone returns a copy so callers cannot mutate store-held state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
