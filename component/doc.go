// Package component defines the lifecycle contract for long-running parts of
// the service (HTTP server, key-file watcher, engine holder, telemetry) and a
// registry that starts them in order and stops them in reverse.
package component
