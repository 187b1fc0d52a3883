package database

import (
	"encoding/json"
	"testing"

	"github.com/Monpress1/GlobalNews/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleSnapshot_ArticlesNewestFirst(t *testing.T) {
	articles := []domain.Article{
		{ID: 1, Title: "a", Timestamp: 300},
		{ID: 2, Title: "b", Timestamp: 100},
		{ID: 3, Title: "c", Timestamp: 200},
	}

	snapshot := assembleSnapshot(articles, nil, nil)

	require.Len(t, snapshot, 3)
	assert.Equal(t, int64(300), snapshot[0].Timestamp)
	assert.Equal(t, int64(200), snapshot[1].Timestamp)
	assert.Equal(t, int64(100), snapshot[2].Timestamp)
}

func TestAssembleSnapshot_CommentsOldestFirst(t *testing.T) {
	articles := []domain.Article{{ID: 7, Title: "a", Timestamp: 1}}
	comments := []domain.Comment{
		{ID: 1, ArticleID: 7, UserName: "u", Timestamp: 50},
		{ID: 2, ArticleID: 7, UserName: "u", Timestamp: 10},
		{ID: 3, ArticleID: 7, UserName: "u", Timestamp: 30},
	}

	snapshot := assembleSnapshot(articles, comments, nil)

	require.Len(t, snapshot, 1)
	require.Len(t, snapshot[0].Comments, 3)
	assert.Equal(t, int64(10), snapshot[0].Comments[0].Timestamp)
	assert.Equal(t, int64(30), snapshot[0].Comments[1].Timestamp)
	assert.Equal(t, int64(50), snapshot[0].Comments[2].Timestamp)
}

func TestAssembleSnapshot_TimestampTiesBreakByID(t *testing.T) {
	articles := []domain.Article{
		{ID: 1, Timestamp: 100},
		{ID: 2, Timestamp: 100},
	}
	comments := []domain.Comment{
		{ID: 9, ArticleID: 1, Timestamp: 5},
		{ID: 4, ArticleID: 1, Timestamp: 5},
	}

	snapshot := assembleSnapshot(articles, comments, nil)

	require.Len(t, snapshot, 2)
	// Articles: same timestamp, higher ID first
	assert.Equal(t, int64(2), snapshot[0].ID)
	assert.Equal(t, int64(1), snapshot[1].ID)
	// Comments: same timestamp, lower ID first
	require.Len(t, snapshot[1].Comments, 2)
	assert.Equal(t, int64(4), snapshot[1].Comments[0].ID)
	assert.Equal(t, int64(9), snapshot[1].Comments[1].ID)
}

func TestAssembleSnapshot_GroupsByArticle(t *testing.T) {
	articles := []domain.Article{
		{ID: 1, Timestamp: 200},
		{ID: 2, Timestamp: 100},
	}
	comments := []domain.Comment{
		{ID: 1, ArticleID: 2, UserName: "alice", Timestamp: 1},
		{ID: 2, ArticleID: 1, UserName: "bob", Timestamp: 2},
		{ID: 3, ArticleID: 2, UserName: "carol", Timestamp: 3},
	}
	reactions := []domain.Reaction{
		{ID: 1, ArticleID: 1, ClientID: "c1", Type: "like", Timestamp: 4},
	}

	snapshot := assembleSnapshot(articles, comments, reactions)

	require.Len(t, snapshot, 2)
	assert.Equal(t, int64(1), snapshot[0].ID)
	require.Len(t, snapshot[0].Comments, 1)
	assert.Equal(t, "bob", snapshot[0].Comments[0].UserName)
	require.Len(t, snapshot[0].Reactions, 1)
	assert.Equal(t, "like", snapshot[0].Reactions[0].Type)

	assert.Equal(t, int64(2), snapshot[1].ID)
	require.Len(t, snapshot[1].Comments, 2)
	assert.Equal(t, "alice", snapshot[1].Comments[0].UserName)
	assert.Empty(t, snapshot[1].Reactions)
}

func TestAssembleSnapshot_EmptyFeed(t *testing.T) {
	snapshot := assembleSnapshot(nil, nil, nil)
	assert.Empty(t, snapshot)
	assert.NotNil(t, snapshot)
}

func TestAssembleSnapshot_MarshalsEmptyCollectionsAsArrays(t *testing.T) {
	articles := []domain.Article{{ID: 1, Title: "bare", Timestamp: 1}}

	snapshot := assembleSnapshot(articles, nil, nil)

	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"comments":[]`)
	assert.Contains(t, string(data), `"reactions":[]`)
}

func TestQueryLabel(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT id, title FROM articles", "select_articles"},
		{"INSERT INTO comments (a) VALUES ($1)", "insert_comments"},
		{"UPDATE articles SET title = $1", "update_articles"},
		{"SELECT pg_advisory_lock($1)", "select"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, queryLabel(tt.sql))
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.False(t, isForeignKeyViolation(nil))
	assert.False(t, isForeignKeyViolation(assert.AnError))
}
