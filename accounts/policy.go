package accounts

import (
	"sort"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/pkg/errors"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt input limit, in bytes
	maxEmailLength    = 256
	maxUsernameLength = 256
)

type newAccount struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ValidateNewAccount applies the creation rules shared by every Store
// implementation and returns the reasons the account is rejected, if any.
func ValidateNewAccount(email, username, password string) []string {
	reasons := make([]string, 0)

	a := newAccount{Email: email, Username: username}
	err := validation.ValidateStruct(&a,
		validation.Field(&a.Email, validation.Required, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&a.Username, validation.Required, validation.Length(1, maxUsernameLength)),
	)
	if errs, ok := err.(validation.Errors); ok {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			reasons = append(reasons, field+": "+errs[field].Error())
		}
	} else if err != nil {
		reasons = append(reasons, err.Error())
	}

	return append(reasons, PasswordStrengthReasons(password)...)
}

// PasswordStrengthReasons lists every unmet password requirement:
// - At least 8 characters and at most 72 bytes long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func PasswordStrengthReasons(password string) []string {
	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	reasons := make([]string, 0)
	if len(password) < minPasswordLength {
		reasons = append(reasons, "password must be at least 8 characters long")
	}
	if len(password) > maxPasswordLength {
		reasons = append(reasons, "password must be at most 72 bytes long")
	}
	if !hasUpper {
		reasons = append(reasons, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "password must contain at least one lowercase letter")
	}
	if !hasNumber {
		reasons = append(reasons, "password must contain at least one number")
	}
	return reasons
}

// ValidatePasswordStrength returns the first unmet password requirement.
func ValidatePasswordStrength(password string) error {
	if reasons := PasswordStrengthReasons(password); len(reasons) > 0 {
		return errors.New(reasons[0])
	}
	return nil
}
