package config

import (
	"os"
	"strings"
)

const appEnvVar = "APP_ENV"

const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

var environmentAliases = map[string]string{
	"dev":         EnvironmentDevelopment,
	"local":       EnvironmentDevelopment,
	"prod":        EnvironmentProduction,
	"producation": EnvironmentProduction,
	"stag":        EnvironmentStaging,
	"stagging":    EnvironmentStaging,
}

// AppEnvironment returns APP_ENV normalised through the alias table,
// defaulting to development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// ResolvePath picks config/config.<env>.yml over the default path when the
// caller did not ask for a specific file and the environment file exists.
func ResolvePath(path, defaultPath string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}
	env := AppEnvironment()
	if env == EnvironmentDevelopment {
		return path
	}
	ext := ".yml"
	base := strings.TrimSuffix(defaultPath, ext)
	candidate := base + "." + env + ext
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

// IsProductionLike reports whether env should fail hard on configuration
// problems such as a missing storage backend.
func IsProductionLike(env string) bool {
	switch env {
	case EnvironmentProduction, EnvironmentStaging:
		return true
	default:
		return false
	}
}
