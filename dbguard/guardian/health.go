package guardian

import (
	"context"
	"time"

	"github.com/corelabs-io/lib-dbguard/dbguard/log"
	libOpentelemetry "github.com/corelabs-io/lib-dbguard/dbguard/opentelemetry"
	"go.opentelemetry.io/otel"
)

// healthCacheEntry pairs a check timestamp with its result. The pair is
// replaced wholesale so the two fields can never be individually stale, and
// a nil entry is the explicit "no result yet" marker (a cached false is a
// valid, fresh result).
type healthCacheEntry struct {
	checkedAt time.Time
	healthy   bool
}

// HealthCheck reports backend health for liveness/readiness probes.
//
// Results are cached for HealthCheckInterval; a cached result exactly at the
// window boundary still counts as fresh. When the cache is stale the guardian
// lazily connects if needed and executes HealthCheckQuery: healthy iff the
// query returns at least one row. Query errors and absent connections report
// unhealthy. The cache is updated unconditionally before returning, including
// on the unhealthy path.
//
// With UnhealthyWithoutConnection disabled this always returns true and
// touches no state.
func (g *Guardian) HealthCheck(ctx context.Context) bool {
	if !g.cfg.UnhealthyWithoutConnection {
		return true
	}

	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer("guardian")

	ctx, span := tracer.Start(ctx, "guardian.health_check")
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	if entry := g.lastHealthCheck; entry != nil {
		if g.deps.now().Sub(entry.checkedAt) <= g.cfg.HealthCheckInterval {
			return entry.healthy
		}
	}

	healthy := g.runHealthCheckLocked(ctx)

	// Cache the outcome unconditionally, negative results included, so the
	// next probe inside the window does no work.
	g.lastHealthCheck = &healthCacheEntry{
		checkedAt: g.deps.now(),
		healthy:   healthy,
	}

	if !healthy {
		libOpentelemetry.HandleSpanError(span, "Database health check failed", ErrNoConnection)
	}

	return healthy
}

// runHealthCheckLocked ensures connectivity and executes the health query.
// Caller must hold g.mu.
func (g *Guardian) runHealthCheckLocked(ctx context.Context) bool {
	if err := g.ensureConnectedLocked(ctx); err != nil {
		g.logAtLevel(ctx, log.LevelDebug, "health check could not establish connection",
			log.String("detail", sanitizeSensitiveError(err)))
	}

	if g.db == nil {
		return false
	}

	healthy, err := g.deps.healthQuery(ctx, g.db, g.cfg.HealthCheckQuery)
	if err != nil {
		g.logAtLevel(ctx, log.LevelWarn, "health check query failed", log.Err(err))

		return false
	}

	return healthy
}
