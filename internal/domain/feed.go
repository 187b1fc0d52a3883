package domain

import "context"

// Article is a published feed entry. Timestamps are client-supplied epoch
// milliseconds; IDs are assigned by the store.
type Article struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Comment is a reader comment attached to an article.
type Comment struct {
	ID          int64  `json:"id"`
	ArticleID   int64  `json:"articleId"`
	UserName    string `json:"userName"`
	CommentText string `json:"commentText"`
	Timestamp   int64  `json:"timestamp"`
}

// Reaction is a lightweight response (like, heart, ...) attached to an
// article. Repeat reactions from the same client are allowed; every reaction
// is its own row.
type Reaction struct {
	ID        int64  `json:"id"`
	ArticleID int64  `json:"articleId"`
	ClientID  string `json:"clientId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ArticleThread is an article with its comments and reactions nested, as
// delivered in snapshots. Comments are ordered oldest first, articles in a
// Snapshot newest first.
type ArticleThread struct {
	Article
	Comments  []Comment  `json:"comments"`
	Reactions []Reaction `json:"reactions"`
}

// Snapshot is the full feed state at a point in time.
type Snapshot []ArticleThread

// FeedStore persists feed entities and serves the full-state snapshot.
// Inserts return the stored row with its assigned ID; referential failures
// on comments and reactions surface as ErrArticleNotFound.
type FeedStore interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	InsertArticle(ctx context.Context, article Article) (Article, error)
	InsertComment(ctx context.Context, articleID int64, comment Comment) (Comment, error)
	InsertReaction(ctx context.Context, articleID int64, reaction Reaction) (Reaction, error)
}
