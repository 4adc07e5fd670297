package config

import "golang.org/x/crypto/bcrypt"

type SecurityConfig interface {
	GetPasswordHasher() string
	GetBcryptCost() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetPasswordHasher() string {
	return GetEnv("PASSWORD_HASHER", "bcrypt")
}

func (Security) GetBcryptCost() int {
	return int(GetEnvInt("BCRYPT_COST", int64(bcrypt.DefaultCost)))
}
