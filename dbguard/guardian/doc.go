// Package guardian provides a lifecycle-managed database connection guardian.
//
// A Guardian lazily establishes a single shared connection to a relational
// backend, answers health probes with a time-windowed cached result, and
// derives single-host or primary/replica connection topology from a flat
// configuration record. It integrates with a hosting process through the
// narrow Host interface (startup, shutdown, and health-check hooks).
package guardian
