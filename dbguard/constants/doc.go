// Package constants centralizes shared attribute keys and values used in
// spans and structured logs.
package constants
