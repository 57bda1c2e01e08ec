package guardian

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/corelabs-io/lib-dbguard/dbguard/backoff"
	constant "github.com/corelabs-io/lib-dbguard/dbguard/constants"
	"github.com/corelabs-io/lib-dbguard/dbguard/log"
	libOpentelemetry "github.com/corelabs-io/lib-dbguard/dbguard/opentelemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// lazyConnectBackoffCapFactor caps the exponential lazy-reconnect delay at a
// multiple of the configured attempt interval.
const lazyConnectBackoffCapFactor = 8

var (
	// ErrNoConnection is returned when no live connection exists and none
	// could be established or found in the registry.
	ErrNoConnection = errors.New("no database connection available")
	// ErrConnect wraps connection establishment failures.
	ErrConnect = errors.New("database connect failed")
	// ErrNilContext is returned when a required context is nil.
	ErrNilContext = errors.New("context cannot be nil")
)

var (
	dsnCredentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	dsnPasswordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
)

// deps groups the low-level operations the guardian performs against the
// database layer. Tests replace individual members.
type deps struct {
	open        func(driverName, dsn string) (*sql.DB, error)
	resolve     func(primary *sql.DB, replicas []*sql.DB) (dbresolver.DB, error)
	ping        func(ctx context.Context, db dbresolver.DB) error
	healthQuery func(ctx context.Context, db dbresolver.DB, query string) (bool, error)
	now         func() time.Time
}

func defaultDeps() deps {
	return deps{
		open: sql.Open,
		resolve: func(primary *sql.DB, replicas []*sql.DB) (db dbresolver.DB, err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					err = fmt.Errorf("failed to create resolver: %v", recovered)
				}
			}()

			if len(replicas) > 0 {
				db = dbresolver.New(
					dbresolver.WithPrimaryDBs(primary),
					dbresolver.WithReplicaDBs(replicas...),
					dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
				)
			} else {
				db = dbresolver.New(dbresolver.WithPrimaryDBs(primary))
			}

			if db == nil {
				return nil, errors.New("resolver returned nil connection")
			}

			return db, nil
		},
		ping: func(ctx context.Context, db dbresolver.DB) error {
			return db.PingContext(ctx)
		},
		healthQuery: func(ctx context.Context, db dbresolver.DB, query string) (bool, error) {
			rows, err := db.QueryContext(ctx, query)
			if err != nil {
				return false, err
			}

			defer func() { _ = rows.Close() }()

			hasRow := rows.Next()
			if err := rows.Err(); err != nil {
				return false, err
			}

			return hasRow, nil
		},
		now: time.Now,
	}
}

// Guardian owns a single shared database connection, its health cache, and
// the options used to (re)establish it. All entry points are safe for
// concurrent use.
type Guardian struct {
	id        string
	cfg       Config
	defaultDB DatabaseConfig
	override  *ConnectionOptions
	registry  *Registry
	logger    log.Logger
	deps      deps

	mu              sync.RWMutex
	db              dbresolver.DB
	connectionName  string
	resolvedOptions *ConnectionOptions

	lastHealthCheck *healthCacheEntry

	lastConnectAttempt time.Time
	lastConnectErr     error
	connectAttempts    int
}

// Option customizes a Guardian at construction time.
type Option func(*Guardian)

// WithLogger sets the logging sink. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(g *Guardian) {
		g.logger = logger
	}
}

// WithDefaultDatabase stores the guardian's default flat database config,
// used as the middle precedence layer by the Options Resolver and as the
// ambient fallback for connect attempts.
func WithDefaultDatabase(cfg DatabaseConfig) Option {
	return func(g *Guardian) {
		g.defaultDB = cfg
	}
}

// WithConnectionOptions supplies fully-specified low-level connection
// options. When set, they take precedence over named and config-derived
// options on every connect attempt.
func WithConnectionOptions(opts ConnectionOptions) Option {
	return func(g *Guardian) {
		g.override = &opts
	}
}

// WithConnectionName sets the logical identifier used for registry lookups.
func WithConnectionName(name string) Option {
	return func(g *Guardian) {
		g.connectionName = name
	}
}

// WithRegistry injects the external registry consulted for named connection
// options and for connections established outside this guardian.
func WithRegistry(registry *Registry) Option {
	return func(g *Guardian) {
		g.registry = registry
	}
}

// New creates a Guardian. The default database config, when provided, is
// validated here so misconfiguration surfaces at construction rather than on
// the first connect.
func New(cfg Config, opts ...Option) (*Guardian, error) {
	g := &Guardian{
		id:   uuid.NewString(),
		cfg:  cfg.withDefaults(),
		deps: defaultDeps(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.logger == nil {
		g.logger = log.NewNop()
	}

	g.logger = g.logger.With(
		log.String("component", "guardian"),
		log.String("guardian_id", g.id),
	)

	if err := g.defaultDB.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Connect establishes the shared connection if one is not already live.
// Idempotent: a live handle makes this a no-op. Failures are logged and
// converted per the ConnectionRequired policy; a raw backend error never
// escapes when connections are optional.
func (g *Guardian) Connect(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	tracer := otel.Tracer("guardian")

	ctx, span := tracer.Start(ctx, "guardian.connect")
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	span.SetAttributes(dbSystemAttribute(g.optionsForConnectLocked().Type))

	if g.liveLocked(ctx) {
		return nil
	}

	if err := g.attemptLocked(ctx); err != nil {
		libOpentelemetry.HandleSpanError(span, "Failed to connect to database", err)

		if g.cfg.ConnectionRequired {
			return err
		}

		return nil
	}

	return nil
}

// Close releases the shared connection. No-op when no handle exists. The
// handle is dropped regardless of whether the underlying close succeeds, so
// callers cannot retry operations on a half-closed connection.
func (g *Guardian) Close(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	tracer := otel.Tracer("guardian")

	ctx, span := tracer.Start(ctx, "guardian.close")
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.closeLocked(ctx)
	if err != nil {
		libOpentelemetry.HandleSpanError(span, "Failed to close database connection", err)
	}

	return err
}

func (g *Guardian) closeLocked(ctx context.Context) error {
	if g.db == nil {
		return nil
	}

	err := g.db.Close()
	g.db = nil

	if err != nil {
		g.logAtLevel(ctx, log.LevelWarn, "database close failed", log.Err(err))

		return fmt.Errorf("database close failed: %w", err)
	}

	g.logAtLevel(ctx, log.LevelInfo, "database connection closed")

	return nil
}

// GetDB returns a live connection handle, lazily connecting when necessary.
// When no connection can be established, it falls back to a connection
// registered under the guardian's name (or the default slot) by another code
// path.
func (g *Guardian) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	// Fast path: already connected (read lock only).
	g.mu.RLock()
	db := g.db
	g.mu.RUnlock()

	if db != nil {
		return db, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring the write lock.
	if g.db != nil {
		return g.db, nil
	}

	connectErr := g.ensureConnectedLocked(ctx)
	if g.db != nil {
		return g.db, nil
	}

	if g.registry != nil {
		if db, ok := g.registry.lookupConnection(g.connectionName); ok {
			return db, nil
		}
	}

	if connectErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, connectErr)
	}

	return nil, ErrNoConnection
}

// IsConnected reports whether a connection handle currently exists.
func (g *Guardian) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.db != nil
}

// ConnectionName returns the guardian's logical connection identifier.
func (g *Guardian) ConnectionName() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.connectionName
}

// liveLocked reports whether the current handle exists and answers a ping.
// A present-but-dead handle is closed and dropped so the caller can
// re-establish. Caller must hold g.mu.
func (g *Guardian) liveLocked(ctx context.Context) bool {
	if g.db == nil {
		return false
	}

	if err := g.deps.ping(ctx, g.db); err != nil {
		g.logAtLevel(ctx, log.LevelWarn, "existing connection is not live; reconnecting", log.Err(err))

		if closeErr := g.db.Close(); closeErr != nil {
			g.logAtLevel(ctx, log.LevelWarn, "failed to close dead connection", log.Err(closeErr))
		}

		g.db = nil

		return false
	}

	return true
}

// ensureConnectedLocked is the lazy connect path used by GetDB and the
// health check. Unlike a direct Connect call it honors the configured
// attempt cooldown: within the window the last outcome is returned without
// re-dialing. Caller must hold g.mu.
func (g *Guardian) ensureConnectedLocked(ctx context.Context) error {
	if g.db != nil {
		return nil
	}

	if g.cfg.ConnectionAttemptInterval > 0 && g.connectAttempts > 0 {
		delay := backoff.Exponential(g.cfg.ConnectionAttemptInterval, g.connectAttempts-1)
		if capDelay := lazyConnectBackoffCapFactor * g.cfg.ConnectionAttemptInterval; delay > capDelay {
			delay = capDelay
		}

		if elapsed := g.deps.now().Sub(g.lastConnectAttempt); elapsed < delay {
			if g.lastConnectErr != nil {
				return fmt.Errorf("connect attempt rate-limited (next attempt in %s): %w",
					delay-elapsed, g.lastConnectErr)
			}

			return fmt.Errorf("connect attempt rate-limited (next attempt in %s)", delay-elapsed)
		}
	}

	return g.attemptLocked(ctx)
}

// attemptLocked performs one full connection attempt and records its
// outcome. Caller must hold g.mu.
func (g *Guardian) attemptLocked(ctx context.Context) error {
	g.lastConnectAttempt = g.deps.now()

	err := g.establishLocked(ctx)
	g.lastConnectErr = err

	if err != nil {
		g.connectAttempts++

		g.logAtLevel(ctx, log.LevelError, "database connection failed",
			log.String("detail", sanitizeSensitiveError(err)))

		return fmt.Errorf("%w: %s", ErrConnect, sanitizeSensitiveError(err))
	}

	g.connectAttempts = 0

	return nil
}

// establishLocked resolves options, opens the primary and every replica,
// builds the resolver, and activates it with a ping. Caller must hold g.mu.
func (g *Guardian) establishLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before database connection: %w", err)
	}

	opts := g.optionsForConnectLocked()
	primary, replicas := opts.endpoints()

	g.logAtLevel(ctx, log.LevelInfo, "attempting database connection",
		log.String("type", opts.Type),
		log.String("host", primary.Host),
		log.Int("replicas", len(replicas)),
	)

	driverName, primaryDSN, err := dataSourceName(opts.Type, primary)
	if err != nil {
		return err
	}

	primaryDB, err := g.deps.open(driverName, primaryDSN)
	if err != nil {
		return fmt.Errorf("failed to open primary connection: %w", err)
	}

	// Ensure everything opened so far is cleaned up if a later step fails.
	var success bool

	defer func() {
		if !success {
			_ = primaryDB.Close()
		}
	}()

	replicaDBs := make([]*sql.DB, 0, len(replicas))

	defer func() {
		if !success {
			for _, replicaDB := range replicaDBs {
				_ = replicaDB.Close()
			}
		}
	}()

	for _, replica := range replicas {
		_, replicaDSN, err := dataSourceName(opts.Type, replica)
		if err != nil {
			return err
		}

		replicaDB, err := g.deps.open(driverName, replicaDSN)
		if err != nil {
			return fmt.Errorf("failed to open replica connection: %w", err)
		}

		replicaDBs = append(replicaDBs, replicaDB)
	}

	db, err := g.deps.resolve(primaryDB, replicaDBs)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before ping: %w", err)
	}

	// A freshly opened handle is lazy; ping activates it.
	if err := g.deps.ping(ctx, db); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Replace, never mutate in place: any previous dead handle was already
	// dropped by liveLocked.
	g.db = db
	success = true

	g.logAtLevel(ctx, log.LevelInfo, "database connected",
		log.String("type", opts.Type),
		log.String("host", primary.Host),
	)

	return nil
}

// optionsForConnectLocked picks connection options in priority order:
// construction-time override, registry options under the connection name,
// previously resolved options, then ambient defaults. Caller must hold g.mu.
func (g *Guardian) optionsForConnectLocked() ConnectionOptions {
	if g.override != nil {
		return *g.override
	}

	if g.connectionName != "" && g.registry != nil {
		if opts, ok := g.registry.Options(g.connectionName); ok {
			return opts
		}
	}

	if g.resolvedOptions != nil {
		return *g.resolvedOptions
	}

	return g.BuildConnectionOptions(nil)
}

func (g *Guardian) logAtLevel(ctx context.Context, level log.Level, message string, fields ...log.Field) {
	if g.logger == nil || !g.logger.Enabled(level) {
		return
	}

	g.logger.Log(ctx, level, message, fields...)
}

// sanitizeSensitiveError scrubs credential material from connection error
// strings before they reach logs or callers.
func sanitizeSensitiveError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := dsnCredentialsPattern.ReplaceAllString(err.Error(), "://***@")
	sanitized = dsnPasswordPattern.ReplaceAllString(sanitized, "${1}***")

	return sanitized
}

// dbSystemAttribute maps a backend type to its OTEL db.system value.
func dbSystemAttribute(backendType string) attribute.KeyValue {
	system := constant.DBSystemMySQL
	if backendType == "postgres" {
		system = constant.DBSystemPostgreSQL
	}

	return attribute.String(constant.AttrDBSystem, system)
}
