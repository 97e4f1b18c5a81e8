// Package store holds the in-memory representation of a single post
// aggregate and provides pure, total update operations over it. Every
// function takes the current aggregate by value and returns a new one;
// malformed input (empty ids, missing targets) is a no-op, never an error.
// Operations match by id and are idempotent: applying the same confirmation
// twice leaves the aggregate unchanged the second time.
package store

import "pitboard/internal/models"

// Position selects where an inserted entry lands in its list.
type Position int

const (
	// Front prepends, used for optimistic comment submission so the new
	// entry is immediately visible at the top of the list.
	Front Position = iota
	// Back appends, used for replies which stay in list order.
	Back
)

// SetPost replaces the whole aggregate. Used after a full-post fetch or an
// edit/delete response that returns the authoritative post.
func SetPost(_ models.Post, next models.Post) models.Post {
	return next.Normalize()
}

// InsertComment adds a comment to the aggregate. If a comment with the same
// id already exists it is replaced in place instead of duplicated.
func InsertComment(p models.Post, c models.Comment, pos Position) models.Post {
	if c.ID == "" {
		return p
	}
	if _, ok := findCommentIndex(p, c.ID); ok {
		return ReplaceComment(p, c.ID, c)
	}
	comments := make([]models.Comment, 0, len(p.Comments)+1)
	if pos == Front {
		comments = append(comments, c)
		comments = append(comments, p.Comments...)
	} else {
		comments = append(comments, p.Comments...)
		comments = append(comments, c)
	}
	p.Comments = comments
	return p
}

// ReplaceComment swaps the comment whose id equals targetID for final,
// preserving list position. No-op if the target is gone; this is the guard
// that keeps a late confirmation from resurrecting a deleted entry.
func ReplaceComment(p models.Post, targetID string, final models.Comment) models.Post {
	i, ok := findCommentIndex(p, targetID)
	if !ok || final.ID == "" {
		return p
	}
	comments := cloneComments(p.Comments)
	comments[i] = final
	p.Comments = comments
	return p
}

// RemoveComment filters the comment out of the aggregate.
func RemoveComment(p models.Post, commentID string) models.Post {
	i, ok := findCommentIndex(p, commentID)
	if !ok {
		return p
	}
	comments := make([]models.Comment, 0, len(p.Comments)-1)
	comments = append(comments, p.Comments[:i]...)
	comments = append(comments, p.Comments[i+1:]...)
	p.Comments = comments
	return p
}

// PatchCommentLikes adds or removes userID from the comment's like set.
// Adding an already-present id or removing an absent one is a no-op.
func PatchCommentLikes(p models.Post, commentID, userID string, liked bool) models.Post {
	i, ok := findCommentIndex(p, commentID)
	if !ok || userID == "" {
		return p
	}
	next, changed := patchIDSet(p.Comments[i].Likes, userID, liked)
	if !changed {
		return p
	}
	comments := cloneComments(p.Comments)
	comments[i].Likes = next
	p.Comments = comments
	return p
}

// SetCommentStatus updates the transient delivery flags on a comment.
func SetCommentStatus(p models.Post, commentID string, sending, failed bool) models.Post {
	i, ok := findCommentIndex(p, commentID)
	if !ok {
		return p
	}
	comments := cloneComments(p.Comments)
	comments[i].Sending = sending
	comments[i].Failed = failed
	p.Comments = comments
	return p
}

// InsertReply adds a reply under the given comment, replacing by id if a
// reply with the same id already exists.
func InsertReply(p models.Post, commentID string, r models.Reply, pos Position) models.Post {
	ci, ok := findCommentIndex(p, commentID)
	if !ok || r.ID == "" {
		return p
	}
	if _, ok := findReplyIndex(p.Comments[ci], r.ID); ok {
		return ReplaceReply(p, commentID, r.ID, r)
	}
	comments := cloneComments(p.Comments)
	replies := make([]models.Reply, 0, len(comments[ci].Replies)+1)
	if pos == Front {
		replies = append(replies, r)
		replies = append(replies, comments[ci].Replies...)
	} else {
		replies = append(replies, comments[ci].Replies...)
		replies = append(replies, r)
	}
	comments[ci].Replies = replies
	p.Comments = comments
	return p
}

// ReplaceReply swaps the reply whose id equals targetID for final under the
// given comment, preserving position.
func ReplaceReply(p models.Post, commentID, targetID string, final models.Reply) models.Post {
	ci, ok := findCommentIndex(p, commentID)
	if !ok || final.ID == "" {
		return p
	}
	ri, ok := findReplyIndex(p.Comments[ci], targetID)
	if !ok {
		return p
	}
	comments := cloneComments(p.Comments)
	replies := cloneReplies(comments[ci].Replies)
	replies[ri] = final
	comments[ci].Replies = replies
	p.Comments = comments
	return p
}

// RemoveReply filters the reply out from under its comment.
func RemoveReply(p models.Post, commentID, replyID string) models.Post {
	ci, ok := findCommentIndex(p, commentID)
	if !ok {
		return p
	}
	ri, ok := findReplyIndex(p.Comments[ci], replyID)
	if !ok {
		return p
	}
	comments := cloneComments(p.Comments)
	replies := make([]models.Reply, 0, len(comments[ci].Replies)-1)
	replies = append(replies, comments[ci].Replies[:ri]...)
	replies = append(replies, comments[ci].Replies[ri+1:]...)
	comments[ci].Replies = replies
	p.Comments = comments
	return p
}

// PatchReplyLikes adds or removes userID from a reply's like set,
// idempotently.
func PatchReplyLikes(p models.Post, commentID, replyID, userID string, liked bool) models.Post {
	ci, ok := findCommentIndex(p, commentID)
	if !ok || userID == "" {
		return p
	}
	ri, ok := findReplyIndex(p.Comments[ci], replyID)
	if !ok {
		return p
	}
	next, changed := patchIDSet(p.Comments[ci].Replies[ri].Likes, userID, liked)
	if !changed {
		return p
	}
	comments := cloneComments(p.Comments)
	replies := cloneReplies(comments[ci].Replies)
	replies[ri].Likes = next
	comments[ci].Replies = replies
	p.Comments = comments
	return p
}

// SetReplyStatus updates the transient delivery flags on a reply.
func SetReplyStatus(p models.Post, commentID, replyID string, sending, failed bool) models.Post {
	ci, ok := findCommentIndex(p, commentID)
	if !ok {
		return p
	}
	ri, ok := findReplyIndex(p.Comments[ci], replyID)
	if !ok {
		return p
	}
	comments := cloneComments(p.Comments)
	replies := cloneReplies(comments[ci].Replies)
	replies[ri].Sending = sending
	replies[ri].Failed = failed
	comments[ci].Replies = replies
	p.Comments = comments
	return p
}

// FindComment returns the comment with the given id, if present.
func FindComment(p models.Post, commentID string) (models.Comment, bool) {
	if i, ok := findCommentIndex(p, commentID); ok {
		return p.Comments[i], true
	}
	return models.Comment{}, false
}

// FindReply returns the reply with the given id under the given comment.
func FindReply(p models.Post, commentID, replyID string) (models.Reply, bool) {
	ci, ok := findCommentIndex(p, commentID)
	if !ok {
		return models.Reply{}, false
	}
	if ri, ok := findReplyIndex(p.Comments[ci], replyID); ok {
		return p.Comments[ci].Replies[ri], true
	}
	return models.Reply{}, false
}

// CommentLikedBy reports whether userID is in the comment's like set.
func CommentLikedBy(p models.Post, commentID, userID string) bool {
	c, ok := FindComment(p, commentID)
	if !ok {
		return false
	}
	return containsID(c.Likes, userID)
}

// ReplyLikedBy reports whether userID is in the reply's like set.
func ReplyLikedBy(p models.Post, commentID, replyID, userID string) bool {
	r, ok := FindReply(p, commentID, replyID)
	if !ok {
		return false
	}
	return containsID(r.Likes, userID)
}

func findCommentIndex(p models.Post, id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func findReplyIndex(c models.Comment, id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i := range c.Replies {
		if c.Replies[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func cloneComments(in []models.Comment) []models.Comment {
	out := make([]models.Comment, len(in))
	copy(out, in)
	return out
}

func cloneReplies(in []models.Reply) []models.Reply {
	out := make([]models.Reply, len(in))
	copy(out, in)
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// patchIDSet returns the like set with id added or removed. The second return
// reports whether anything changed; callers skip the copy when it did not.
func patchIDSet(ids []string, id string, present bool) ([]string, bool) {
	has := containsID(ids, id)
	if present == has {
		return ids, false
	}
	if present {
		out := make([]string, 0, len(ids)+1)
		out = append(out, ids...)
		out = append(out, id)
		return out, true
	}
	out := make([]string, 0, len(ids)-1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out, true
}
