// Package transport defines the behavioral contract to the excluded backend
// (the REST/auth/media collaborators of the feed) and provides two adapters:
// an HTTP client against a configured upstream and an in-memory fake used by
// tests, the simulator, and dev mode.
package transport

import (
	"context"

	"pitboard/internal/models"
)

// Client is the abstract upstream the feed engine calls. Mutations are
// issued exactly once per dispatched action; the engine's optimistic state is
// authoritative until a call errors. Implementations return errors that
// Classify can map onto the failure taxonomy.
type Client interface {
	// FetchPost loads the full aggregate for one post. Used when a session
	// opens and whenever the view needs a fresh authoritative copy.
	FetchPost(ctx context.Context, postID string) (models.Post, error)

	SubmitComment(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error)
	EditComment(ctx context.Context, postID, commentID, content string) (models.Post, error)
	DeleteComment(ctx context.Context, postID, commentID string) (models.Post, error)
	ToggleCommentLike(ctx context.Context, postID, commentID, userID string) error

	SubmitReply(ctx context.Context, postID, commentID string, author models.UserSummary, content string) (models.Reply, error)
	EditReply(ctx context.Context, postID, commentID, replyID, content string) (models.Post, error)
	DeleteReply(ctx context.Context, postID, commentID, replyID string) (models.Post, error)
	ToggleReplyLike(ctx context.Context, postID, commentID, replyID, userID string) error

	// FetchLikers returns up to limit users who liked the post, most recent
	// first.
	FetchLikers(ctx context.Context, postID string, limit int) ([]models.UserSummary, error)
}

// Operation names used for failure injection and metrics labels.
const (
	OpFetchPost         = "FetchPost"
	OpSubmitComment     = "SubmitComment"
	OpEditComment       = "EditComment"
	OpDeleteComment     = "DeleteComment"
	OpToggleCommentLike = "ToggleCommentLike"
	OpSubmitReply       = "SubmitReply"
	OpEditReply         = "EditReply"
	OpDeleteReply       = "DeleteReply"
	OpToggleReplyLike   = "ToggleReplyLike"
	OpFetchLikers       = "FetchLikers"
)
