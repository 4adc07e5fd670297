package accounts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNilAccount      = errors.New("account is nil")
)

// PolicyError reports why an account could not be created. Reasons are
// human-readable and ordered.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string {
	return "account rejected: " + strings.Join(e.Reasons, "; ")
}

// NewPolicyError returns nil when there are no reasons.
func NewPolicyError(reasons ...string) error {
	if len(reasons) == 0 {
		return nil
	}
	return &PolicyError{Reasons: reasons}
}

// PolicyReasons extracts the reasons from a *PolicyError anywhere in err's chain.
func PolicyReasons(err error) ([]string, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Reasons, true
	}
	return nil, false
}

func DuplicateEmailReason(email string) string {
	return fmt.Sprintf("Email '%s' is already taken.", email)
}

func DuplicateUsernameReason(username string) string {
	return fmt.Sprintf("Username '%s' is already taken.", username)
}
