package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	bootstrapURLVar = "BOOTSTRAP_BASE_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "EGAV Auth Bridge")
}

// GetBootstrapBaseURL returns the base URL of the tenant-resolution endpoint.
// This is the only externally configured URL; every other endpoint the bridge
// uses comes out of the resolved tenant configuration.
func (EnvVars) GetBootstrapBaseURL() string {
	return GetEnv(bootstrapURLVar, "https://control.egav.io")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
