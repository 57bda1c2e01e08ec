// Package server provides server lifecycle and graceful shutdown helpers.
//
// ServerManager coordinates signal handling, startup/shutdown hooks, and
// ordered resource cleanup for HTTP/gRPC service processes. It implements
// guardian.Host so a connection guardian can bind its connect, close, and
// health-check hooks directly to the process lifecycle.
package server
