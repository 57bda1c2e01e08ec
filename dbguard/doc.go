// Package dbguard provides shared infrastructure helpers for the connection
// guardian subpackages.
//
// The root package holds environment lookup helpers and local dotenv
// bootstrapping. Specialized integrations live in subpackages such as
// guardian, server, log, zap, and backoff.
package dbguard
