// Package server wires the HTTP surface: the feed WebSocket endpoint,
// health probes, and the Prometheus metrics endpoint. Connection admission
// is guarded by global, per-IP, and rate limits.
package server
