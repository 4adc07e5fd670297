package auth

import (
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Validate checks that every registration field is present. Format and
// policy rules belong to the credential store.
func (r RegisterRequest) Validate() []string {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Username, validation.Required),
	)
	return flattenValidationErrors(err)
}

// Validate checks that both credentials are present.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func flattenValidationErrors(err error) []string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	reasons := make([]string, 0, len(fields))
	for _, field := range fields {
		reasons = append(reasons, field+": "+errs[field].Error())
	}
	return reasons
}
