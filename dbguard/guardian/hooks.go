package guardian

import "context"

// Host is the narrow lifecycle surface the guardian consumes from its
// hosting process. Hooks are registered once, at binding time; invocation
// timing and failure propagation policy belong to the host.
type Host interface {
	// OnStart registers a hook invoked during the host's startup sequence.
	// A non-nil error from the hook signals startup failure.
	OnStart(hook func(ctx context.Context) error)

	// OnStop registers a hook invoked during the host's shutdown sequence.
	OnStop(hook func(ctx context.Context) error)

	// AddHealthCheck registers a named predicate polled for liveness and
	// readiness probes.
	AddHealthCheck(name string, check func(ctx context.Context) bool)
}

// Bind registers the guardian's lifecycle with the host: connect on startup,
// close on shutdown, and the cached health predicate for probes.
func (g *Guardian) Bind(h Host) {
	h.OnStart(g.Connect)
	h.OnStop(g.Close)
	h.AddHealthCheck("database", g.HealthCheck)
}
