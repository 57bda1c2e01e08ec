// Package http provides Fiber-oriented HTTP helpers for exposing guardian
// health state.
//
// The health handler aggregates named checks registered with the host and
// reports an overall available/degraded status for probes.
package http
