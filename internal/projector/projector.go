// Package projector derives what to render from the post aggregate, the
// pagination state, and the sort key. Projection is a pure read-side query:
// it never mutates its inputs and holds no caches, so it can be recomputed
// on every request.
package projector

import (
	"pitboard/internal/models"
	"pitboard/internal/paging"
	"pitboard/internal/sorting"
)

// Config carries the window sizes. The collapsed preview count and the
// expanded page size are deliberately distinct settings.
type Config struct {
	CommentsPerPage       int
	CollapsedReplyCount   int
	ExpandedReplyPageSize int
}

// DefaultConfig returns the stock window sizes.
func DefaultConfig() Config {
	return Config{
		CommentsPerPage:       10,
		CollapsedReplyCount:   3,
		ExpandedReplyPageSize: 5,
	}
}

// PaginationState is the per-post view position: the zero-based comment page
// plus each comment's reply disclosure state, keyed by comment id.
type PaginationState struct {
	CommentPage int
	Replies     map[string]paging.ReplyState
}

// NewPaginationState returns the initial position: first comment page, every
// comment collapsed.
func NewPaginationState() PaginationState {
	return PaginationState{Replies: make(map[string]paging.ReplyState)}
}

// ReplyStateFor returns the disclosure state for a comment, defaulting to
// collapsed at page one.
func (s PaginationState) ReplyStateFor(commentID string) paging.ReplyState {
	if st, ok := s.Replies[commentID]; ok {
		return st
	}
	return paging.NewReplyState()
}

// View is the read-only projection handed to the presentation layer.
// Comments are sorted and windowed; each visible comment carries only its
// visible reply window, with the full bookkeeping in ReplyInfo.
type View struct {
	PostID      string                       `json:"post_id"`
	Content     string                       `json:"content"`
	Author      models.UserSummary           `json:"author"`
	MediaURLs   []string                     `json:"media_urls,omitempty"`
	Likes       []string                     `json:"likes"`
	Views       int                          `json:"views"`
	SortKey     sorting.Key                  `json:"sort_key"`
	Comments    []models.Comment             `json:"comments"`
	CommentInfo paging.DisplayInfo           `json:"comment_info"`
	ReplyInfo   map[string]paging.DisplayInfo `json:"reply_info"`
	// Error is the session's transient error channel; filled in by the
	// session, not by projection.
	Error string `json:"error,omitempty"`
}

// Project composes the view for one post. Sorting happens on a copy before
// windowing; the aggregate itself is left untouched.
func Project(post models.Post, ps PaginationState, key sorting.Key, cfg Config) View {
	sorted := sorting.Sorted(post.Comments, key)
	visible := paging.Window(sorted, ps.CommentPage, cfg.CommentsPerPage)

	comments := make([]models.Comment, len(visible))
	replyInfo := make(map[string]paging.DisplayInfo, len(visible))
	for i, c := range visible {
		st := ps.ReplyStateFor(c.ID)
		replyInfo[c.ID] = paging.ReplyInfo(len(c.Replies), st, cfg.CollapsedReplyCount, cfg.ExpandedReplyPageSize)
		c.Replies = paging.ReplyWindow(c.Replies, st, cfg.CollapsedReplyCount, cfg.ExpandedReplyPageSize)
		comments[i] = c
	}

	return View{
		PostID:      post.ID,
		Content:     post.Content,
		Author:      post.Author,
		MediaURLs:   post.MediaURLs,
		Likes:       post.Likes,
		Views:       post.Views,
		SortKey:     key,
		Comments:    comments,
		CommentInfo: paging.Describe(len(post.Comments), ps.CommentPage, cfg.CommentsPerPage),
		ReplyInfo:   replyInfo,
	}
}
