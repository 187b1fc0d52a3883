// Package domain defines the core domain types and interfaces.
//
// This package contains the feed entities (Article, Comment, Reaction), the
// snapshot aggregate, the FeedStore port, and sentinel errors. No
// implementation code - just contracts. Prevents circular imports by keeping
// interfaces on the consumer side.
package domain
