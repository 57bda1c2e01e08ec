package guardian

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"

	// Database drivers registered for sql.Open.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUnsupportedBackend is returned when options name a backend kind the
// guardian has no driver for.
var ErrUnsupportedBackend = errors.New("unsupported backend type")

// Endpoint is a fully addressed backend endpoint with its credentials.
type Endpoint struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// ReplicationOptions describes a primary/replica topology. Writes target
// Master; reads may be distributed across Slaves.
type ReplicationOptions struct {
	Master Endpoint
	Slaves []Endpoint
}

// ConnectionOptions is the structured form the connection provider expects.
// Either the inline endpoint fields are set (single-host) or Replication is
// non-nil (primary/replica), never both.
type ConnectionOptions struct {
	// Name is the logical connection identifier, when declared.
	Name string

	// Type is the backend kind ("mysql" or "postgres").
	Type string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	Replication *ReplicationOptions
}

// endpoints normalizes both option shapes into a primary endpoint and an
// ordered replica list.
func (o ConnectionOptions) endpoints() (Endpoint, []Endpoint) {
	if o.Replication != nil {
		return o.Replication.Master, o.Replication.Slaves
	}

	return Endpoint{
		Host:     o.Host,
		Port:     o.Port,
		Database: o.Database,
		Username: o.Username,
		Password: o.Password,
	}, nil
}

// BuildConnectionOptions resolves the structured connection options from a
// flat configuration record. Field precedence is per-call cfg, then the
// guardian's stored default config, then hard-coded fallbacks. With no
// replicas the result is single-endpoint options (host = master); otherwise
// replication options carrying the identical credential set on the primary
// and every replica, replicas in input order.
//
// Pure with respect to guardian state; use ConnectionOptions to also cache
// the result for the next connect attempt.
func (g *Guardian) BuildConnectionOptions(cfg *DatabaseConfig) ConnectionOptions {
	merged := mergeDatabaseConfig(cfg, g.defaultDB)

	shared := Endpoint{
		Host:     merged.Master,
		Port:     merged.Port,
		Database: merged.Database,
		Username: merged.Username,
		Password: merged.Password,
	}

	opts := ConnectionOptions{
		Name: merged.Name,
		Type: merged.Type,
	}

	if len(merged.Slaves) == 0 {
		opts.Host = shared.Host
		opts.Port = shared.Port
		opts.Database = shared.Database
		opts.Username = shared.Username
		opts.Password = shared.Password

		return opts
	}

	slaves := make([]Endpoint, len(merged.Slaves))
	for i, host := range merged.Slaves {
		replica := shared
		replica.Host = host
		slaves[i] = replica
	}

	opts.Replication = &ReplicationOptions{
		Master: shared,
		Slaves: slaves,
	}

	return opts
}

// ConnectionOptions resolves options like BuildConnectionOptions and
// additionally caches them for reuse on the next connect attempt. When the
// resolved options declare a logical name, the guardian adopts it as its
// connection name.
func (g *Guardian) ConnectionOptions(cfg *DatabaseConfig) ConnectionOptions {
	opts := g.BuildConnectionOptions(cfg)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.resolvedOptions = &opts

	if opts.Name != "" {
		g.connectionName = opts.Name
	}

	return opts
}

// mergeDatabaseConfig overlays override on top of base field by field, then
// applies the hard-coded fallbacks for type, host, and port.
func mergeDatabaseConfig(override *DatabaseConfig, base DatabaseConfig) DatabaseConfig {
	merged := base

	if override != nil {
		if override.Name != "" {
			merged.Name = override.Name
		}

		if override.Type != "" {
			merged.Type = override.Type
		}

		if override.Master != "" {
			merged.Master = override.Master
		}

		if override.Slaves != nil {
			merged.Slaves = override.Slaves
		}

		if override.Port != 0 {
			merged.Port = override.Port
		}

		if override.Database != "" {
			merged.Database = override.Database
		}

		if override.Username != "" {
			merged.Username = override.Username
		}

		if override.Password != "" {
			merged.Password = override.Password
		}
	}

	if merged.Type == "" {
		merged.Type = FallbackType
	}

	if merged.Master == "" {
		merged.Master = FallbackHost
	}

	if merged.Port == 0 {
		merged.Port = FallbackPort
	}

	return merged
}

// dataSourceName builds the driver name and DSN for one endpoint of the
// given backend kind.
func dataSourceName(backendType string, e Endpoint) (string, string, error) {
	switch backendType {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = e.Username
		cfg.Passwd = e.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
		cfg.DBName = e.Database

		return "mysql", cfg.FormatDSN(), nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(e.Username, e.Password),
			Host:   net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
			Path:   "/" + e.Database,
		}

		return "pgx", u.String(), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, backendType)
	}
}
