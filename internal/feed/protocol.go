package feed

import "github.com/Monpress1/GlobalNews/internal/domain"

// Message type discriminators of the wire protocol.
const (
	// Inbound (client to server)
	TypePublishArticle = "PUBLISH_ARTICLE"
	TypePostComment    = "POST_COMMENT"
	TypePostReaction   = "POST_REACTION"
	TypeGetAllArticles = "GET_ALL_ARTICLES"

	// Outbound (server to client)
	TypeAllArticles = "ALL_ARTICLES"
	TypeNewArticle  = "NEW_ARTICLE"
	TypeNewComment  = "NEW_COMMENT"
	TypeNewReaction = "NEW_REACTION"
	TypeError       = "ERROR"
)

// inboundMessage is the envelope for every client message. Only the fields
// matching the declared type are consulted; the rest stay nil.
type inboundMessage struct {
	Type      string           `json:"type"`
	ArticleID int64            `json:"articleId"`
	Article   *domain.Article  `json:"article"`
	Comment   *domain.Comment  `json:"comment"`
	Reaction  *domain.Reaction `json:"reaction"`
}

type allArticlesMessage struct {
	Type     string          `json:"type"`
	Articles domain.Snapshot `json:"articles"`
}

type newArticleMessage struct {
	Type    string         `json:"type"`
	Article domain.Article `json:"article"`
}

type newCommentMessage struct {
	Type      string         `json:"type"`
	ArticleID int64          `json:"articleId"`
	Comment   domain.Comment `json:"comment"`
}

type newReactionMessage struct {
	Type      string          `json:"type"`
	ArticleID int64           `json:"articleId"`
	Reaction  domain.Reaction `json:"reaction"`
}

type errorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ArticleID int64  `json:"articleId,omitempty"`
}

// validateArticle returns a client-facing rejection reason, or "" if the
// payload is acceptable. Validation is field presence only and never
// touches the store.
func validateArticle(article *domain.Article) string {
	switch {
	case article == nil:
		return "article payload is required"
	case article.Title == "":
		return "article title is required"
	case article.Content == "":
		return "article content is required"
	case article.Timestamp <= 0:
		return "article timestamp is required"
	}
	return ""
}

func validateComment(articleID int64, comment *domain.Comment) string {
	switch {
	case articleID <= 0:
		return "articleId is required"
	case comment == nil:
		return "comment payload is required"
	case comment.UserName == "":
		return "comment userName is required"
	case comment.CommentText == "":
		return "comment text is required"
	case comment.Timestamp <= 0:
		return "comment timestamp is required"
	}
	return ""
}

func validateReaction(articleID int64, reaction *domain.Reaction) string {
	switch {
	case articleID <= 0:
		return "articleId is required"
	case reaction == nil:
		return "reaction payload is required"
	case reaction.ClientID == "":
		return "reaction clientId is required"
	case reaction.Type == "":
		return "reaction type is required"
	case reaction.Timestamp <= 0:
		return "reaction timestamp is required"
	}
	return ""
}
