// Package broadcast implements the WebSocket connection hub using the actor pattern.
//
// The Hub owns the registry of connected clients and fans out feed events to all of them.
// Uses single goroutine + command channel (no mutexes). Per-connection write goroutines
// handle slow clients gracefully. New connections are admitted gated: their writer holds
// all output until the hub installs the initial full-state frame, so a client never sees
// an event before the snapshot it belongs behind.
package broadcast
