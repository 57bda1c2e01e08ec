// Package log defines the logging interface and typed logging fields used by
// the guardian and its host adapters.
//
// Adapters (such as the zap package) implement Logger so callers can keep
// logging calls consistent across backends.
package log
