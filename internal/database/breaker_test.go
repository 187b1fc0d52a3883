package database

import (
	"context"
	"errors"
	"testing"

	"github.com/Monpress1/GlobalNews/internal/domain"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every call until healthy is flipped.
type flakyStore struct {
	healthy bool
	err     error
	calls   int
}

func (f *flakyStore) Snapshot(_ context.Context) (domain.Snapshot, error) {
	f.calls++
	if !f.healthy {
		return nil, f.err
	}
	return domain.Snapshot{}, nil
}

func (f *flakyStore) InsertArticle(_ context.Context, article domain.Article) (domain.Article, error) {
	f.calls++
	if !f.healthy {
		return domain.Article{}, f.err
	}
	article.ID = int64(f.calls)
	return article, nil
}

func (f *flakyStore) InsertComment(_ context.Context, articleID int64, comment domain.Comment) (domain.Comment, error) {
	f.calls++
	if !f.healthy {
		return domain.Comment{}, f.err
	}
	comment.ID = int64(f.calls)
	comment.ArticleID = articleID
	return comment, nil
}

func (f *flakyStore) InsertReaction(_ context.Context, articleID int64, reaction domain.Reaction) (domain.Reaction, error) {
	f.calls++
	if !f.healthy {
		return domain.Reaction{}, f.err
	}
	reaction.ID = int64(f.calls)
	reaction.ArticleID = articleID
	return reaction, nil
}

func TestBreakerStore_PassesThroughWhenHealthy(t *testing.T) {
	inner := &flakyStore{healthy: true}
	store := NewBreakerStore(inner)

	article, err := store.InsertArticle(context.Background(), domain.Article{Title: "t", Content: "c", Timestamp: 1})
	require.NoError(t, err)
	assert.NotZero(t, article.ID)
	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("connection refused")}
	store := NewBreakerStore(inner)

	for range breakerFailureThreshold {
		_, err := store.Snapshot(context.Background())
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, store.State())

	// Open circuit fails fast without touching the store
	callsBefore := inner.calls
	_, err := store.Snapshot(context.Background())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBefore, inner.calls)
}

func TestBreakerStore_ArticleNotFoundDoesNotTrip(t *testing.T) {
	inner := &flakyStore{err: domain.ErrArticleNotFound}
	store := NewBreakerStore(inner)

	for range breakerFailureThreshold * 2 {
		_, err := store.InsertComment(context.Background(), 42, domain.Comment{UserName: "u", CommentText: "c", Timestamp: 1})
		require.ErrorIs(t, err, domain.ErrArticleNotFound)
	}

	assert.Equal(t, gobreaker.StateClosed, store.State())
}

func TestBreakerStore_ErrorsKeepTheirIdentity(t *testing.T) {
	inner := &flakyStore{err: domain.ErrArticleNotFound}
	store := NewBreakerStore(inner)

	_, err := store.InsertReaction(context.Background(), 42, domain.Reaction{ClientID: "c", Type: "like", Timestamp: 1})
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}
