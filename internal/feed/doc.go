// Package feed implements the wire protocol of the article feed: it parses
// inbound client messages, validates them, persists mutations through the
// store, and hands the canonical records to the hub for fan-out. Newly
// admitted connections receive a full snapshot before any live event.
package feed
