package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Monpress1/GlobalNews/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeedRepo implements domain.FeedStore backed by PostgreSQL.
type FeedRepo struct {
	pool *pgxpool.Pool
}

var _ domain.FeedStore = (*FeedRepo)(nil)

// NewFeedRepo creates a FeedRepo from the shared connection pool.
func NewFeedRepo(pool *pgxpool.Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

// Snapshot loads the full feed with exactly three queries (articles,
// comments, reactions) and assembles the nested structure in memory.
// Per-article follow-up queries would make snapshot cost scale with feed
// size in round trips; three flat scans keep it constant.
func (r *FeedRepo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	articles, err := r.listArticles(ctx)
	if err != nil {
		return nil, err
	}

	comments, err := r.listComments(ctx)
	if err != nil {
		return nil, err
	}

	reactions, err := r.listReactions(ctx)
	if err != nil {
		return nil, err
	}

	return assembleSnapshot(articles, comments, reactions), nil
}

func (r *FeedRepo) listArticles(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, content, image_url, ts FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.ImageURL, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return articles, nil
}

func (r *FeedRepo) listComments(ctx context.Context) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, article_id, user_name, comment_text, ts FROM comments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.UserName, &c.CommentText, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read comments: %w", err)
	}
	return comments, nil
}

func (r *FeedRepo) listReactions(ctx context.Context) ([]domain.Reaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, article_id, client_id, kind, ts FROM reactions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var re domain.Reaction
		if err := rows.Scan(&re.ID, &re.ArticleID, &re.ClientID, &re.Type, &re.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		reactions = append(reactions, re)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reactions: %w", err)
	}
	return reactions, nil
}

// InsertArticle stores the article and returns it with its assigned ID.
func (r *FeedRepo) InsertArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO articles (title, content, image_url, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, article.Title, article.Content, article.ImageURL, article.Timestamp).Scan(&article.ID)
	if err != nil {
		return domain.Article{}, fmt.Errorf("failed to insert article: %w", err)
	}
	return article, nil
}

// InsertComment stores the comment under the given article. A missing
// article surfaces as domain.ErrArticleNotFound.
func (r *FeedRepo) InsertComment(ctx context.Context, articleID int64, comment domain.Comment) (domain.Comment, error) {
	comment.ArticleID = articleID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (article_id, user_name, comment_text, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, articleID, comment.UserName, comment.CommentText, comment.Timestamp).Scan(&comment.ID)
	if isForeignKeyViolation(err) {
		return domain.Comment{}, domain.ErrArticleNotFound
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("failed to insert comment: %w", err)
	}
	return comment, nil
}

// InsertReaction stores the reaction under the given article. A missing
// article surfaces as domain.ErrArticleNotFound.
func (r *FeedRepo) InsertReaction(ctx context.Context, articleID int64, reaction domain.Reaction) (domain.Reaction, error) {
	reaction.ArticleID = articleID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reactions (article_id, client_id, kind, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, articleID, reaction.ClientID, reaction.Type, reaction.Timestamp).Scan(&reaction.ID)
	if isForeignKeyViolation(err) {
		return domain.Reaction{}, domain.ErrArticleNotFound
	}
	if err != nil {
		return domain.Reaction{}, fmt.Errorf("failed to insert reaction: %w", err)
	}
	return reaction, nil
}

// foreignKeyViolation is the PostgreSQL SQLSTATE for FK constraint failures.
const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// assembleSnapshot groups comments and reactions under their articles and
// applies the feed ordering: articles newest first, comments oldest first,
// ID as tiebreak on equal timestamps. Reactions keep store order.
func assembleSnapshot(articles []domain.Article, comments []domain.Comment, reactions []domain.Reaction) domain.Snapshot {
	commentsByArticle := make(map[int64][]domain.Comment, len(articles))
	for _, c := range comments {
		commentsByArticle[c.ArticleID] = append(commentsByArticle[c.ArticleID], c)
	}

	reactionsByArticle := make(map[int64][]domain.Reaction, len(articles))
	for _, re := range reactions {
		reactionsByArticle[re.ArticleID] = append(reactionsByArticle[re.ArticleID], re)
	}

	snapshot := make(domain.Snapshot, 0, len(articles))
	for _, a := range articles {
		thread := domain.ArticleThread{
			Article:   a,
			Comments:  commentsByArticle[a.ID],
			Reactions: reactionsByArticle[a.ID],
		}

		// marshal as [] rather than null
		if thread.Comments == nil {
			thread.Comments = []domain.Comment{}
		}
		if thread.Reactions == nil {
			thread.Reactions = []domain.Reaction{}
		}

		sort.SliceStable(thread.Comments, func(i, j int) bool {
			ci, cj := thread.Comments[i], thread.Comments[j]
			if ci.Timestamp != cj.Timestamp {
				return ci.Timestamp < cj.Timestamp
			}
			return ci.ID < cj.ID
		})

		snapshot = append(snapshot, thread)
	}

	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].Timestamp != snapshot[j].Timestamp {
			return snapshot[i].Timestamp > snapshot[j].Timestamp
		}
		return snapshot[i].ID > snapshot[j].ID
	})

	return snapshot
}
