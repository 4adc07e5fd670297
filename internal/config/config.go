package config

type Config interface {
	EnvConfig
	CorsConfig
	StoreConfig
	TokenConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Store
	Token
	Security
}

var _ Config = mainConfig{}

func New() Config {
	return mainConfig{}
}
