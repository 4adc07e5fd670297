package auth

import "errors"

var (
	ErrTokenIssuance = errors.New("token issuance failed")
	ErrAccountSetup  = errors.New("account created but setup incomplete")
)
