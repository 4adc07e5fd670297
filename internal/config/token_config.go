package config

type TokenConfig interface {
	GetJWTIssuer() string
	GetJWTAudience() string
	GetJWTExpirationSeconds() int64
	GetJWTSigningAlg() string
	GetJWTSecret() string
	GetJWTPrivateKeyFile() string
	GetJWTKeyID() string
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetJWTIssuer() string {
	return GetEnv("JWT_ISSUER", "go-auth-gateway")
}

func (Token) GetJWTAudience() string {
	return GetEnv("JWT_AUDIENCE", "")
}

func (Token) GetJWTExpirationSeconds() int64 {
	return GetEnvInt("JWT_EXPIRATION_SECONDS", 3600)
}

func (Token) GetJWTSigningAlg() string {
	return GetEnv("JWT_SIGNING_ALG", "HS256")
}

// GetJWTSecret has no default; HMAC signing fails to start without one.
func (Token) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Token) GetJWTPrivateKeyFile() string {
	return GetEnv("JWT_PRIVATE_KEY_FILE", "")
}

func (Token) GetJWTKeyID() string {
	return GetEnv("JWT_KEY_ID", "")
}
