package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Monpress1/GlobalNews/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testPool        *pgxpool.Pool
	testDatabaseURL string
)

func TestMain(m *testing.M) {
	// Parse flags to check for -short
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	// Start PostgreSQL container once for all tests
	postgresContainer, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		os.Exit(1)
	}
	testDatabaseURL = connStr

	testPool, err = Connect(ctx, testDatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	os.Exit(code)
}

// setupFeedRepo returns a repo and registers cleanup to truncate tables.
func setupFeedRepo(t *testing.T) *FeedRepo {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		ctx := context.Background()
		_, err := testPool.Exec(ctx, "TRUNCATE articles, comments, reactions CASCADE")
		if err != nil {
			t.Logf("Failed to truncate tables: %v", err)
		}
	})

	return NewFeedRepo(testPool)
}

func seedArticle(t *testing.T, repo *FeedRepo, title string, ts int64) domain.Article {
	t.Helper()

	article, err := repo.InsertArticle(context.Background(), domain.Article{
		Title:     title,
		Content:   "content of " + title,
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.NotZero(t, article.ID)

	return article
}

func TestRunMigrations_Idempotency(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Second run over an up-to-date schema must be a no-op
	err := RunMigrations(context.Background(), testPool)
	require.NoError(t, err)
}

func TestFeedRepo_InsertArticle(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	article, err := repo.InsertArticle(ctx, domain.Article{
		Title:     "Breaking",
		Content:   "Something happened",
		ImageURL:  "https://example.com/a.png",
		Timestamp: 1700000000000,
	})
	require.NoError(t, err)
	assert.NotZero(t, article.ID)
	assert.Equal(t, "Breaking", article.Title)

	// IDs are monotonic per sequence
	second, err := repo.InsertArticle(ctx, domain.Article{Title: "Next", Content: "c", Timestamp: 1})
	require.NoError(t, err)
	assert.Greater(t, second.ID, article.ID)
}

func TestFeedRepo_InsertComment(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	article := seedArticle(t, repo, "with comments", 100)

	comment, err := repo.InsertComment(ctx, article.ID, domain.Comment{
		UserName:    "alice",
		CommentText: "first!",
		Timestamp:   1,
	})
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)
	assert.Equal(t, article.ID, comment.ArticleID)
}

func TestFeedRepo_InsertComment_MissingArticle(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	_, err := repo.InsertComment(ctx, 999999, domain.Comment{
		UserName:    "alice",
		CommentText: "into the void",
		Timestamp:   1,
	})
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestFeedRepo_InsertReaction_MissingArticle(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	_, err := repo.InsertReaction(ctx, 999999, domain.Reaction{
		ClientID:  "client-1",
		Type:      "like",
		Timestamp: 1,
	})
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestFeedRepo_RepeatReactionsAllowed(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	article := seedArticle(t, repo, "popular", 100)

	first, err := repo.InsertReaction(ctx, article.ID, domain.Reaction{ClientID: "c1", Type: "like", Timestamp: 1})
	require.NoError(t, err)
	second, err := repo.InsertReaction(ctx, article.ID, domain.Reaction{ClientID: "c1", Type: "like", Timestamp: 2})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	snapshot, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Len(t, snapshot[0].Reactions, 2)
}

func TestFeedRepo_Snapshot_Empty(t *testing.T) {
	repo := setupFeedRepo(t)

	snapshot, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestFeedRepo_Snapshot_OrderingAndNesting(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	old := seedArticle(t, repo, "old", 100)
	newest := seedArticle(t, repo, "newest", 300)
	middle := seedArticle(t, repo, "middle", 200)

	// Comments inserted out of timestamp order
	_, err := repo.InsertComment(ctx, old.ID, domain.Comment{UserName: "u1", CommentText: "late", Timestamp: 50})
	require.NoError(t, err)
	_, err = repo.InsertComment(ctx, old.ID, domain.Comment{UserName: "u2", CommentText: "early", Timestamp: 10})
	require.NoError(t, err)
	_, err = repo.InsertComment(ctx, old.ID, domain.Comment{UserName: "u3", CommentText: "mid", Timestamp: 30})
	require.NoError(t, err)

	_, err = repo.InsertReaction(ctx, newest.ID, domain.Reaction{ClientID: "c1", Type: "heart", Timestamp: 5})
	require.NoError(t, err)

	snapshot, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 3)

	// Articles newest first
	assert.Equal(t, newest.ID, snapshot[0].ID)
	assert.Equal(t, middle.ID, snapshot[1].ID)
	assert.Equal(t, old.ID, snapshot[2].ID)

	// Comments oldest first under their article
	oldThread := snapshot[2]
	require.Len(t, oldThread.Comments, 3)
	assert.Equal(t, "early", oldThread.Comments[0].CommentText)
	assert.Equal(t, "mid", oldThread.Comments[1].CommentText)
	assert.Equal(t, "late", oldThread.Comments[2].CommentText)

	// Reactions attached to the right article
	require.Len(t, snapshot[0].Reactions, 1)
	assert.Equal(t, "heart", snapshot[0].Reactions[0].Type)
	assert.Empty(t, snapshot[1].Reactions)
	assert.Empty(t, snapshot[1].Comments)
}

func TestFeedRepo_CascadeDelete(t *testing.T) {
	repo := setupFeedRepo(t)
	ctx := context.Background()

	article := seedArticle(t, repo, "doomed", 100)
	_, err := repo.InsertComment(ctx, article.ID, domain.Comment{UserName: "u", CommentText: "c", Timestamp: 1})
	require.NoError(t, err)

	_, err = testPool.Exec(ctx, "DELETE FROM articles WHERE id = $1", article.ID)
	require.NoError(t, err)

	var count int
	err = testPool.QueryRow(ctx, "SELECT COUNT(*) FROM comments WHERE article_id = $1", article.ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}
