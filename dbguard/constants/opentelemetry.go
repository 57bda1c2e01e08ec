package constants

const (
	// AttrDBSystem is the OTEL semantic convention attribute key for the database system name.
	AttrDBSystem = "db.system"
	// AttrDBName is the OTEL semantic convention attribute key for the logical database name.
	AttrDBName = "db.name"
	// AttrServerAddress is the OTEL semantic convention attribute key for the server host.
	AttrServerAddress = "server.address"
)

// Database system identifiers used as values for AttrDBSystem.
const (
	// DBSystemMySQL is the OTEL semantic convention value for MySQL.
	DBSystemMySQL = "mysql"
	// DBSystemPostgreSQL is the OTEL semantic convention value for PostgreSQL.
	DBSystemPostgreSQL = "postgresql"
)
