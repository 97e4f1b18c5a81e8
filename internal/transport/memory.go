package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pitboard/internal/models"
	"pitboard/internal/store"
)

// ToggleMode selects how the fake upstream treats repeated like toggles.
// Whether the real upstream coalesces double-clicks is not pinned down by its
// contract, so both behaviors are available for tests and the simulator.
type ToggleMode int

const (
	// ToggleAlternating flips membership on every call.
	ToggleAlternating ToggleMode = iota
	// ToggleIdempotent coalesces duplicate toggles from the same user that
	// land inside the dedupe window, treating a double-click as one intent.
	ToggleIdempotent
)

const defaultDedupeWindow = 500 * time.Millisecond

// MemoryClient is an in-memory authoritative upstream with per-operation
// failure injection. It reuses the store operations so its aggregates obey
// the same invariants the engine maintains locally.
type MemoryClient struct {
	mu           sync.Mutex
	posts        map[string]models.Post
	users        map[string]models.UserSummary
	failures     map[string][]error
	lastToggle   map[string]time.Time
	mode         ToggleMode
	dedupeWindow time.Duration
	nextID       int
	now          func() time.Time
}

// NewMemoryClient returns an empty upstream in alternating toggle mode.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		posts:        make(map[string]models.Post),
		users:        make(map[string]models.UserSummary),
		failures:     make(map[string][]error),
		lastToggle:   make(map[string]time.Time),
		dedupeWindow: defaultDedupeWindow,
		nextID:       1000,
		now:          time.Now,
	}
}

// SetToggleMode switches the remote like-toggle semantics.
func (m *MemoryClient) SetToggleMode(mode ToggleMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SeedPost installs a post aggregate as upstream truth.
func (m *MemoryClient) SeedPost(p models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = p.Normalize()
}

// SeedUser registers a user so FetchLikers can resolve summaries.
func (m *MemoryClient) SeedUser(u models.UserSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// FailNext queues an error for the next call of the named operation. Queued
// errors are consumed in order; once drained, calls succeed again.
func (m *MemoryClient) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

func (m *MemoryClient) popFailure(op string) error {
	queue := m.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	m.failures[op] = queue[1:]
	return err
}

func (m *MemoryClient) FetchPost(_ context.Context, postID string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpFetchPost); err != nil {
		return models.Post{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	return p, nil
}

func (m *MemoryClient) SubmitComment(_ context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpSubmitComment); err != nil {
		return models.Comment{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Comment{}, models.NewNotFoundError("post", postID)
	}
	if content == "" {
		return models.Comment{}, models.NewValidationError("Content is required")
	}
	m.nextID++
	now := m.now()
	c := models.Comment{
		ID:        fmt.Sprintf("cmt-%d", m.nextID),
		Content:   content,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.posts[postID] = store.InsertComment(p, c, store.Front)
	return c, nil
}

func (m *MemoryClient) EditComment(_ context.Context, postID, commentID, content string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpEditComment); err != nil {
		return models.Post{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	c, ok := store.FindComment(p, commentID)
	if !ok {
		return models.Post{}, models.NewNotFoundError("comment", commentID)
	}
	if content == "" {
		return models.Post{}, models.NewValidationError("Content is required")
	}
	edited := true
	c.Content = content
	c.UpdatedAt = m.now()
	c.Edited = &edited
	p = store.ReplaceComment(p, commentID, c)
	m.posts[postID] = p
	return p, nil
}

func (m *MemoryClient) DeleteComment(_ context.Context, postID, commentID string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpDeleteComment); err != nil {
		return models.Post{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	if _, ok := store.FindComment(p, commentID); !ok {
		return models.Post{}, models.NewNotFoundError("comment", commentID)
	}
	p = store.RemoveComment(p, commentID)
	m.posts[postID] = p
	return p, nil
}

func (m *MemoryClient) ToggleCommentLike(_ context.Context, postID, commentID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpToggleCommentLike); err != nil {
		return err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.NewNotFoundError("post", postID)
	}
	if _, ok := store.FindComment(p, commentID); !ok {
		return models.NewNotFoundError("comment", commentID)
	}
	if m.coalesceToggle("c|"+commentID, userID) {
		return nil
	}
	liked := store.CommentLikedBy(p, commentID, userID)
	m.posts[postID] = store.PatchCommentLikes(p, commentID, userID, !liked)
	return nil
}

func (m *MemoryClient) SubmitReply(_ context.Context, postID, commentID string, author models.UserSummary, content string) (models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpSubmitReply); err != nil {
		return models.Reply{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Reply{}, models.NewNotFoundError("post", postID)
	}
	if _, ok := store.FindComment(p, commentID); !ok {
		return models.Reply{}, models.NewNotFoundError("comment", commentID)
	}
	if content == "" {
		return models.Reply{}, models.NewValidationError("Content is required")
	}
	m.nextID++
	now := m.now()
	r := models.Reply{
		ID:        fmt.Sprintf("rpl-%d", m.nextID),
		Content:   content,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.posts[postID] = store.InsertReply(p, commentID, r, store.Back)
	return r, nil
}

func (m *MemoryClient) EditReply(_ context.Context, postID, commentID, replyID, content string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpEditReply); err != nil {
		return models.Post{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	r, ok := store.FindReply(p, commentID, replyID)
	if !ok {
		return models.Post{}, models.NewNotFoundError("reply", replyID)
	}
	if content == "" {
		return models.Post{}, models.NewValidationError("Content is required")
	}
	edited := true
	r.Content = content
	r.UpdatedAt = m.now()
	r.Edited = &edited
	p = store.ReplaceReply(p, commentID, replyID, r)
	m.posts[postID] = p
	return p, nil
}

func (m *MemoryClient) DeleteReply(_ context.Context, postID, commentID, replyID string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpDeleteReply); err != nil {
		return models.Post{}, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.Post{}, models.NewNotFoundError("post", postID)
	}
	if _, ok := store.FindReply(p, commentID, replyID); !ok {
		return models.Post{}, models.NewNotFoundError("reply", replyID)
	}
	p = store.RemoveReply(p, commentID, replyID)
	m.posts[postID] = p
	return p, nil
}

func (m *MemoryClient) ToggleReplyLike(_ context.Context, postID, commentID, replyID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpToggleReplyLike); err != nil {
		return err
	}
	p, ok := m.posts[postID]
	if !ok {
		return models.NewNotFoundError("post", postID)
	}
	if _, ok := store.FindReply(p, commentID, replyID); !ok {
		return models.NewNotFoundError("reply", replyID)
	}
	if m.coalesceToggle("r|"+replyID, userID) {
		return nil
	}
	liked := store.ReplyLikedBy(p, commentID, replyID, userID)
	m.posts[postID] = store.PatchReplyLikes(p, commentID, replyID, userID, !liked)
	return nil
}

func (m *MemoryClient) FetchLikers(_ context.Context, postID string, limit int) ([]models.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(OpFetchLikers); err != nil {
		return nil, err
	}
	p, ok := m.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("post", postID)
	}
	if limit < 1 || limit > len(p.Likes) {
		limit = len(p.Likes)
	}
	out := make([]models.UserSummary, 0, limit)
	for _, id := range p.Likes[:limit] {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
			continue
		}
		out = append(out, models.UserSummary{ID: id, Username: "user-" + id})
	}
	return out, nil
}

// coalesceToggle reports whether this toggle should be swallowed as a
// duplicate under idempotent mode. Caller holds the lock.
func (m *MemoryClient) coalesceToggle(entityKey, userID string) bool {
	key := entityKey + "|" + userID
	now := m.now()
	last, seen := m.lastToggle[key]
	m.lastToggle[key] = now
	if m.mode != ToggleIdempotent {
		return false
	}
	return seen && now.Sub(last) < m.dedupeWindow
}
