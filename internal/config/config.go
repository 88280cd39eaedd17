package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBootstrapBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
	Security
}

func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
