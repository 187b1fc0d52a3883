package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Monpress1/GlobalNews/internal/domain"
	"github.com/Monpress1/GlobalNews/internal/metrics"
	"github.com/sony/gobreaker"
)

const (
	breakerFailureThreshold = 5
	breakerOpenDuration     = 30 * time.Second
)

// BreakerStore wraps a FeedStore with a circuit breaker so a struggling
// database fails fast instead of stacking blocked connection handlers.
// Referential-integrity rejections are client errors and do not count as
// store failures.
type BreakerStore struct {
	store domain.FeedStore
	cb    *gobreaker.CircuitBreaker
}

var _ domain.FeedStore = (*BreakerStore)(nil)

// NewBreakerStore creates a breaker-protected view of the given store.
// The circuit opens after breakerFailureThreshold consecutive failures and
// stays open for breakerOpenDuration before probing again.
func NewBreakerStore(store domain.FeedStore) *BreakerStore {
	settings := gobreaker.Settings{
		Name:    "feed_store",
		Timeout: breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrArticleNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Store circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.StoreBreakerStateChanges.WithLabelValues(to.String()).Inc()
			metrics.StoreBreakerState.Set(breakerStateValue(to))
		},
	}

	return &BreakerStore{store: store, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.store.Snapshot(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Snapshot), nil
}

func (b *BreakerStore) InsertArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.store.InsertArticle(ctx, article)
	})
	if err != nil {
		return domain.Article{}, err
	}
	return result.(domain.Article), nil
}

func (b *BreakerStore) InsertComment(ctx context.Context, articleID int64, comment domain.Comment) (domain.Comment, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.store.InsertComment(ctx, articleID, comment)
	})
	if err != nil {
		return domain.Comment{}, err
	}
	return result.(domain.Comment), nil
}

func (b *BreakerStore) InsertReaction(ctx context.Context, articleID int64, reaction domain.Reaction) (domain.Reaction, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.store.InsertReaction(ctx, articleID, reaction)
	})
	if err != nil {
		return domain.Reaction{}, err
	}
	return result.(domain.Reaction), nil
}

// State returns the current breaker state (closed, half-open, open).
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
