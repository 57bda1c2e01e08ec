//go:build unit

package guardian

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	assert.Equal(t, defaultHealthCheckQuery, cfg.HealthCheckQuery)
	assert.Equal(t, defaultHealthCheckInterval, cfg.HealthCheckInterval)
	assert.False(t, cfg.ConnectionRequired)
	assert.Zero(t, cfg.ConnectionAttemptInterval)
}

func TestConfig_WithDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		ConnectionRequired:  true,
		HealthCheckInterval: 5 * time.Second,
		HealthCheckQuery:    "SELECT version()",
	}.withDefaults()

	assert.True(t, cfg.ConnectionRequired)
	assert.Equal(t, 5*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, "SELECT version()", cfg.HealthCheckQuery)
}

func TestConfig_WithDefaults_BlankQueryReplaced(t *testing.T) {
	t.Parallel()

	cfg := Config{HealthCheckQuery: "   "}.withDefaults()
	assert.Equal(t, defaultHealthCheckQuery, cfg.HealthCheckQuery)
}

func TestDatabaseConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     DatabaseConfig
		wantErr bool
	}{
		{name: "empty config is valid", cfg: DatabaseConfig{}},
		{name: "mysql", cfg: DatabaseConfig{Type: "mysql"}},
		{name: "postgres", cfg: DatabaseConfig{Type: "postgres"}},
		{name: "unknown type", cfg: DatabaseConfig{Type: "oracle"}, wantErr: true},
		{name: "valid port", cfg: DatabaseConfig{Port: 5432}},
		{name: "port too large", cfg: DatabaseConfig{Port: 70000}, wantErr: true},
		{name: "negative port", cfg: DatabaseConfig{Port: -1}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid database config")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DB_GUARDIAN_CONNECTION_REQUIRED", "true")
	t.Setenv("DB_GUARDIAN_UNHEALTHY_WITHOUT_CONNECTION", "true")
	t.Setenv("DB_GUARDIAN_CONNECTION_ATTEMPT_INTERVAL", "10s")
	t.Setenv("DB_GUARDIAN_HEALTH_CHECK_INTERVAL", "1m")
	t.Setenv("DB_GUARDIAN_HEALTH_CHECK_QUERY", "SELECT 2")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.ConnectionRequired)
	assert.True(t, cfg.UnhealthyWithoutConnection)
	assert.Equal(t, 10*time.Second, cfg.ConnectionAttemptInterval)
	assert.Equal(t, time.Minute, cfg.HealthCheckInterval)
	assert.Equal(t, "SELECT 2", cfg.HealthCheckQuery)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_GUARDIAN_CONNECTION_REQUIRED", "")
	t.Setenv("DB_GUARDIAN_UNHEALTHY_WITHOUT_CONNECTION", "")
	t.Setenv("DB_GUARDIAN_CONNECTION_ATTEMPT_INTERVAL", "")
	t.Setenv("DB_GUARDIAN_HEALTH_CHECK_INTERVAL", "")
	t.Setenv("DB_GUARDIAN_HEALTH_CHECK_QUERY", "")

	cfg := ConfigFromEnv()
	assert.False(t, cfg.ConnectionRequired)
	assert.False(t, cfg.UnhealthyWithoutConnection)
	assert.Zero(t, cfg.ConnectionAttemptInterval)
	assert.Equal(t, defaultHealthCheckInterval, cfg.HealthCheckInterval)
	assert.Equal(t, defaultHealthCheckQuery, cfg.HealthCheckQuery)
}

func TestDatabaseConfigFromEnv(t *testing.T) {
	t.Setenv("DB_CONNECTION_NAME", "orders")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_HOST", "db1.internal")
	t.Setenv("DB_REPLICAS", "db2.internal, db3.internal")
	t.Setenv("DB_REPLICA", "ignored.internal")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_DATABASE", "orders")
	t.Setenv("DB_USERNAME", "app")
	t.Setenv("DB_PASSWORD", "secret")

	cfg := DatabaseConfigFromEnv()
	assert.Equal(t, "orders", cfg.Name)
	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, "db1.internal", cfg.Master)
	assert.Equal(t, []string{"db2.internal", "db3.internal"}, cfg.Slaves)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "orders", cfg.Database)
	assert.Equal(t, "app", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
}

func TestDatabaseConfigFromEnv_SingularReplicaFallback(t *testing.T) {
	t.Setenv("DB_CONNECTION_NAME", "")
	t.Setenv("DB_TYPE", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_REPLICAS", "")
	t.Setenv("DB_REPLICA", "replica.internal")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_DATABASE", "")
	t.Setenv("DB_USERNAME", "")
	t.Setenv("DB_PASSWORD", "")

	cfg := DatabaseConfigFromEnv()
	assert.Equal(t, []string{"replica.internal"}, cfg.Slaves)
}

func TestSplitHosts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "whitespace only", raw: "   ", want: nil},
		{name: "single", raw: "db1", want: []string{"db1"}},
		{name: "multiple with spaces", raw: " db1 , db2 ,db3", want: []string{"db1", "db2", "db3"}},
		{name: "empty entries dropped", raw: "db1,,db2,", want: []string{"db1", "db2"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, splitHosts(tt.raw))
		})
	}
}
