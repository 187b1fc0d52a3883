// Package database provides PostgreSQL connectivity and the feed store.
//
// Uses pgx for connection pooling and tern for embedded migrations. FeedRepo
// implements domain.FeedStore; BreakerStore wraps any FeedStore with a
// circuit breaker.
package database
