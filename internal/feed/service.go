package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"github.com/Monpress1/GlobalNews/internal/domain"
	"github.com/Monpress1/GlobalNews/internal/metrics"
)

// Publisher is the fan-out surface the service needs from the hub.
type Publisher interface {
	Register(conn *websocket.Conn) error
	Activate(conn *websocket.Conn, first any) error
	Unregister(conn *websocket.Conn)
	Broadcast(v any)
	Send(conn *websocket.Conn, v any)
}

// Service drives the feed protocol: admission with an initial snapshot,
// mutation handling, and fan-out of canonical records.
type Service struct {
	store domain.FeedStore
	hub   Publisher

	snapshotGroup singleflight.Group
}

// NewService creates a feed service on top of the given store and hub.
func NewService(store domain.FeedStore, hub Publisher) *Service {
	return &Service{store: store, hub: hub}
}

// Admit registers the connection and activates it with a full snapshot as
// its first frame. Broadcasts arriving while the snapshot loads are
// buffered and delivered after it. On failure the connection is
// unregistered and the caller is expected to close it.
func (s *Service) Admit(ctx context.Context, conn *websocket.Conn) error {
	if err := s.hub.Register(conn); err != nil {
		return err
	}

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		s.hub.Unregister(conn)
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := s.hub.Activate(conn, allArticlesMessage{Type: TypeAllArticles, Articles: snapshot}); err != nil {
		s.hub.Unregister(conn)
		return fmt.Errorf("failed to activate connection: %w", err)
	}

	return nil
}

// Disconnect removes the connection from the hub.
func (s *Service) Disconnect(conn *websocket.Conn) {
	s.hub.Unregister(conn)
}

// HandleMessage processes one inbound client message. Every recognized
// message yields exactly one outcome: a broadcast to all clients, a
// targeted snapshot, or a targeted error to the sender.
func (s *Service) HandleMessage(ctx context.Context, conn *websocket.Conn, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("Received malformed message", "error", err)
		metrics.FeedMessagesTotal.WithLabelValues("malformed", "invalid").Inc()
		s.hub.Send(conn, errorMessage{Type: TypeError, Message: "invalid message"})
		return
	}

	switch msg.Type {
	case TypePublishArticle:
		s.handlePublishArticle(ctx, conn, msg.Article)
	case TypePostComment:
		s.handlePostComment(ctx, conn, msg.ArticleID, msg.Comment)
	case TypePostReaction:
		s.handlePostReaction(ctx, conn, msg.ArticleID, msg.Reaction)
	case TypeGetAllArticles:
		s.handleGetAllArticles(ctx, conn)
	default:
		slog.Warn("Ignoring unrecognized message type", "type", msg.Type)
		metrics.FeedMessagesTotal.WithLabelValues("unknown", "unknown").Inc()
	}
}

func (s *Service) handlePublishArticle(ctx context.Context, conn *websocket.Conn, article *domain.Article) {
	if reason := validateArticle(article); reason != "" {
		s.reject(conn, TypePublishArticle, reason)
		return
	}

	created, err := s.store.InsertArticle(ctx, *article)
	if err != nil {
		s.storeFailure(conn, TypePublishArticle, "failed to publish article", 0, err)
		return
	}

	metrics.FeedMessagesTotal.WithLabelValues(TypePublishArticle, "broadcast").Inc()
	s.hub.Broadcast(newArticleMessage{Type: TypeNewArticle, Article: created})
}

func (s *Service) handlePostComment(ctx context.Context, conn *websocket.Conn, articleID int64, comment *domain.Comment) {
	if reason := validateComment(articleID, comment); reason != "" {
		s.reject(conn, TypePostComment, reason)
		return
	}

	created, err := s.store.InsertComment(ctx, articleID, *comment)
	if err != nil {
		s.storeFailure(conn, TypePostComment, "failed to post comment", articleID, err)
		return
	}

	metrics.FeedMessagesTotal.WithLabelValues(TypePostComment, "broadcast").Inc()
	s.hub.Broadcast(newCommentMessage{Type: TypeNewComment, ArticleID: created.ArticleID, Comment: created})
}

func (s *Service) handlePostReaction(ctx context.Context, conn *websocket.Conn, articleID int64, reaction *domain.Reaction) {
	if reason := validateReaction(articleID, reaction); reason != "" {
		s.reject(conn, TypePostReaction, reason)
		return
	}

	created, err := s.store.InsertReaction(ctx, articleID, *reaction)
	if err != nil {
		s.storeFailure(conn, TypePostReaction, "failed to post reaction", articleID, err)
		return
	}

	metrics.FeedMessagesTotal.WithLabelValues(TypePostReaction, "broadcast").Inc()
	s.hub.Broadcast(newReactionMessage{Type: TypeNewReaction, ArticleID: created.ArticleID, Reaction: created})
}

func (s *Service) handleGetAllArticles(ctx context.Context, conn *websocket.Conn) {
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		s.storeFailure(conn, TypeGetAllArticles, "failed to load articles", 0, err)
		return
	}

	metrics.FeedMessagesTotal.WithLabelValues(TypeGetAllArticles, "snapshot").Inc()
	s.hub.Send(conn, allArticlesMessage{Type: TypeAllArticles, Articles: snapshot})
}

// loadSnapshot fetches the full feed. Concurrent loads collapse into a
// single store query via singleflight.
func (s *Service) loadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()
	result, err, _ := s.snapshotGroup.Do("snapshot", func() (any, error) {
		return s.store.Snapshot(ctx)
	})
	if err != nil {
		return nil, err
	}

	snapshot := result.(domain.Snapshot)
	metrics.FeedSnapshotDuration.Observe(time.Since(start).Seconds())
	metrics.FeedSnapshotArticles.Set(float64(len(snapshot)))
	return snapshot, nil
}

// reject answers a validation failure with a targeted error. The store is
// never consulted.
func (s *Service) reject(conn *websocket.Conn, msgType, reason string) {
	slog.Warn("Rejecting message", "type", msgType, "reason", reason)
	metrics.FeedMessagesTotal.WithLabelValues(msgType, "invalid").Inc()
	s.hub.Send(conn, errorMessage{Type: TypeError, Message: reason})
}

// storeFailure answers a failed store write. Referential violations name
// the offending article; anything else stays a generic message with the
// detail kept server-side.
func (s *Service) storeFailure(conn *websocket.Conn, msgType, generic string, articleID int64, err error) {
	if errors.Is(err, domain.ErrArticleNotFound) {
		slog.Warn("Write rejected: article does not exist", "type", msgType, "article_id", articleID)
		metrics.FeedMessagesTotal.WithLabelValues(msgType, "not_found").Inc()
		s.hub.Send(conn, errorMessage{
			Type:      TypeError,
			Message:   fmt.Sprintf("article %d does not exist", articleID),
			ArticleID: articleID,
		})
		return
	}

	slog.Error("Store operation failed", "type", msgType, "error", err)
	metrics.FeedMessagesTotal.WithLabelValues(msgType, "error").Inc()
	s.hub.Send(conn, errorMessage{Type: TypeError, Message: generic})
}
