package dbguard

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var localEnvOnce sync.Once

// InitLocalEnvConfig loads a local .env file into the process environment.
// Missing files are ignored so deployed environments can rely on real
// environment variables only. Safe to call from multiple packages; the file
// is loaded at most once per process.
func InitLocalEnvConfig() {
	localEnvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// GetenvOrDefault returns the value of the environment variable key, or
// defaultValue when the variable is unset or empty.
func GetenvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}

	return value
}

// GetenvBoolOrDefault returns the boolean value of the environment variable
// key, or defaultValue when the variable is unset or not parseable.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetenvIntOrDefault returns the integer value of the environment variable
// key, or defaultValue when the variable is unset or not parseable.
func GetenvIntOrDefault(key string, defaultValue int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}

	return parsed
}

// GetenvDurationOrDefault returns the duration value of the environment
// variable key, or defaultValue when the variable is unset or not parseable.
// Values use time.ParseDuration syntax ("30s", "5m").
func GetenvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}

	return parsed
}
