package guardian

import (
	"fmt"
	"strings"
	"time"

	"github.com/corelabs-io/lib-dbguard/dbguard"
	"github.com/go-playground/validator/v10"
)

// Hard-coded fallbacks applied when neither the per-call config nor the
// guardian's stored defaults set a field.
const (
	FallbackType = "mysql"
	FallbackHost = "127.0.0.1"
	FallbackPort = 3306
)

const (
	defaultHealthCheckQuery    = "SELECT 1"
	defaultHealthCheckInterval = 30 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config controls guardian lifecycle and health-check policy. Immutable after
// construction.
type Config struct {
	// ConnectionRequired makes a failed connect a hard startup failure. When
	// false, connect failures are logged and swallowed so the host proceeds
	// without a database.
	ConnectionRequired bool

	// UnhealthyWithoutConnection gates health checks on database state. When
	// false, HealthCheck always reports healthy and touches no state.
	UnhealthyWithoutConnection bool

	// ConnectionAttemptInterval rate-limits lazy reconnect attempts (those
	// triggered from HealthCheck or GetDB). Zero disables the cooldown.
	// A direct Connect call always attempts.
	ConnectionAttemptInterval time.Duration

	// HealthCheckInterval is the freshness window of the cached health
	// result. A check exactly at the boundary still counts as fresh.
	HealthCheckInterval time.Duration

	// HealthCheckQuery must return at least one row when the backend is
	// reachable. Defaults to "SELECT 1".
	HealthCheckQuery string
}

// withDefaults returns a copy of c with zero-value fields replaced by
// package defaults.
func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.HealthCheckQuery) == "" {
		c.HealthCheckQuery = defaultHealthCheckQuery
	}

	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}

	return c
}

// DatabaseConfig is the flat configuration record the Options Resolver
// consumes. Credentials and connection parameters apply identically to the
// primary and every replica.
type DatabaseConfig struct {
	// Name is an optional logical identifier used to look up previously
	// registered connection options from the registry.
	Name string

	// Type is the backend kind.
	Type string `validate:"omitempty,oneof=mysql postgres"`

	// Master is the primary host address.
	Master string

	// Slaves lists replica host addresses. Nil or empty means single-host.
	Slaves []string

	Port     int `validate:"omitempty,min=1,max=65535"`
	Database string
	Username string
	Password string
}

// Validate checks the record against its field constraints.
func (c DatabaseConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}

	return nil
}

// ConfigFromEnv builds a guardian Config from DB_GUARDIAN_* environment
// variables, loading a local .env file first when present.
func ConfigFromEnv() Config {
	dbguard.InitLocalEnvConfig()

	return Config{
		ConnectionRequired:         dbguard.GetenvBoolOrDefault("DB_GUARDIAN_CONNECTION_REQUIRED", false),
		UnhealthyWithoutConnection: dbguard.GetenvBoolOrDefault("DB_GUARDIAN_UNHEALTHY_WITHOUT_CONNECTION", false),
		ConnectionAttemptInterval:  dbguard.GetenvDurationOrDefault("DB_GUARDIAN_CONNECTION_ATTEMPT_INTERVAL", 0),
		HealthCheckInterval:        dbguard.GetenvDurationOrDefault("DB_GUARDIAN_HEALTH_CHECK_INTERVAL", defaultHealthCheckInterval),
		HealthCheckQuery:           dbguard.GetenvOrDefault("DB_GUARDIAN_HEALTH_CHECK_QUERY", defaultHealthCheckQuery),
	}
}

// DatabaseConfigFromEnv builds the flat database record from DB_* environment
// variables. Replicas come from DB_REPLICAS (comma separated) or, when that
// is unset, from the singular DB_REPLICA.
func DatabaseConfigFromEnv() DatabaseConfig {
	dbguard.InitLocalEnvConfig()

	replicas := splitHosts(dbguard.GetenvOrDefault("DB_REPLICAS", ""))
	if len(replicas) == 0 {
		replicas = splitHosts(dbguard.GetenvOrDefault("DB_REPLICA", ""))
	}

	return DatabaseConfig{
		Name:     dbguard.GetenvOrDefault("DB_CONNECTION_NAME", ""),
		Type:     dbguard.GetenvOrDefault("DB_TYPE", ""),
		Master:   dbguard.GetenvOrDefault("DB_HOST", ""),
		Slaves:   replicas,
		Port:     dbguard.GetenvIntOrDefault("DB_PORT", 0),
		Database: dbguard.GetenvOrDefault("DB_DATABASE", ""),
		Username: dbguard.GetenvOrDefault("DB_USERNAME", ""),
		Password: dbguard.GetenvOrDefault("DB_PASSWORD", ""),
	}
}

// splitHosts turns a comma-separated host list into a slice, trimming
// whitespace and dropping empty entries. Order is preserved.
func splitHosts(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	hosts := make([]string, 0, len(parts))

	for _, part := range parts {
		if host := strings.TrimSpace(part); host != "" {
			hosts = append(hosts, host)
		}
	}

	return hosts
}
