package domain

import "errors"

var (
	// ErrArticleNotFound is returned when a comment or reaction references
	// an article that does not exist in the store.
	ErrArticleNotFound = errors.New("article not found")
)
