// Package feed implements the optimistic mutation engine for one viewed
// post: apply a provisional change synchronously, issue the upstream call
// exactly once, then confirm with the authoritative result or compensate.
//
// A Session serializes apply and confirm/rollback steps with a mutex, which
// plays the role the single-threaded event loop plays in a browser client:
// each step reads the current aggregate, never a snapshot captured when the
// action was dispatched, so in-flight actions cannot clobber each other's
// unrelated updates.
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pitboard/internal/models"
	"pitboard/internal/observability"
	"pitboard/internal/paging"
	"pitboard/internal/projector"
	"pitboard/internal/sorting"
	"pitboard/internal/store"
	"pitboard/internal/transport"
)

// Action labels for logs, metrics, and spans.
const (
	actionSubmitComment     = "submit_comment"
	actionEditComment       = "edit_comment"
	actionDeleteComment     = "delete_comment"
	actionToggleCommentLike = "toggle_comment_like"
	actionSubmitReply       = "submit_reply"
	actionEditReply         = "edit_reply"
	actionDeleteReply       = "delete_reply"
	actionToggleReplyLike   = "toggle_reply_like"
	actionRefresh           = "refresh"
)

// Config carries the session's tunables.
type Config struct {
	CommentsPerPage       int
	CollapsedReplyCount   int
	ExpandedReplyPageSize int
	// ErrorTTL is how long a transient error stays on the view before it
	// clears itself.
	ErrorTTL time.Duration
}

// DefaultConfig returns the stock session settings.
func DefaultConfig() Config {
	return Config{
		CommentsPerPage:       10,
		CollapsedReplyCount:   3,
		ExpandedReplyPageSize: 5,
		ErrorTTL:              4 * time.Second,
	}
}

func (c Config) projectorConfig() projector.Config {
	return projector.Config{
		CommentsPerPage:       c.CommentsPerPage,
		CollapsedReplyCount:   c.CollapsedReplyCount,
		ExpandedReplyPageSize: c.ExpandedReplyPageSize,
	}
}

// Session owns the aggregate for one post viewed by one user, together with
// its pagination position, sort choice, and transient error channel. All
// mutation goes through the dispatchers below; the view side only ever sees
// projections.
type Session struct {
	client transport.Client
	postID string
	viewer models.UserSummary
	cfg    Config
	log    *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	post       models.Post
	pagination projector.PaginationState
	sortKey    sorting.Key
	closed     bool
	lastErr    string
	errAt      time.Time
	touchedAt  time.Time
}

// Open fetches the post and builds a live session around it.
func Open(ctx context.Context, client transport.Client, postID string, viewer models.UserSummary, cfg Config) (*Session, error) {
	if cfg.CommentsPerPage < 1 {
		cfg = DefaultConfig()
	}
	post, err := client.FetchPost(ctx, postID)
	if err != nil {
		return nil, transport.Classify(err)
	}

	s := &Session{
		client:     client,
		postID:     postID,
		viewer:     viewer,
		cfg:        cfg,
		log:        observability.Logger.With(slog.String("post_id", postID), slog.String("viewer_id", viewer.ID)),
		now:        time.Now,
		post:       store.SetPost(models.Post{}, post),
		pagination: projector.NewPaginationState(),
		sortKey:    sorting.Default,
	}
	s.touchedAt = s.now()
	observability.OpenSessions.Inc()
	s.log.InfoContext(ctx, "session opened", slog.Int("comments", s.post.CommentCount()))
	return s, nil
}

// Close marks the session dead. In-flight upstream results that land after
// Close are dropped instead of being applied to state that no longer exists.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	observability.OpenSessions.Dec()
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PostID returns the id of the post this session views.
func (s *Session) PostID() string { return s.postID }

// Viewer returns the acting user.
func (s *Session) Viewer() models.UserSummary { return s.viewer }

// LastActive returns when the session last handled a call, for idle reaping.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// View projects the current state. Pure read: derived entirely from the
// aggregate, the pagination state, and the sort key.
func (s *Session) View() projector.View {
	s.mu.Lock()
	post := s.post
	ps := projector.PaginationState{
		CommentPage: s.pagination.CommentPage,
		Replies:     make(map[string]paging.ReplyState, len(s.pagination.Replies)),
	}
	for id, st := range s.pagination.Replies {
		ps.Replies[id] = st
	}
	key := s.sortKey
	errMsg := ""
	if s.lastErr != "" && s.now().Sub(s.errAt) < s.cfg.ErrorTTL {
		errMsg = s.lastErr
	}
	s.mu.Unlock()

	view := projector.Project(post, ps, key, s.cfg.projectorConfig())
	view.Error = errMsg
	return view
}

// LastError returns the still-visible transient error, if any.
func (s *Session) LastError() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == "" || s.now().Sub(s.errAt) >= s.cfg.ErrorTTL {
		return "", false
	}
	return s.lastErr, true
}

// ClearError empties the error channel.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

// SubmitComment applies a provisional comment at the front of the list, then
// confirms or flags it failed. The provisional entry is never silently
// dropped: on failure it stays visible with failed=true.
func (s *Session) SubmitComment(ctx context.Context, content string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionSubmitComment, s.postID)
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return s.reject(actionSubmitComment, models.NewValidationError("Content is required"))
	}

	now := s.now()
	prov := models.Comment{
		ID:           models.NewProvisionalID(),
		Content:      content,
		Author:       s.viewer,
		CreatedAt:    now,
		UpdatedAt:    now,
		Sending:      true,
		IsOptimistic: true,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = now
	s.post = store.InsertComment(s.post, prov, store.Front)
	// Jump back to the first page so the new entry is on screen.
	s.pagination.CommentPage = 0
	s.mu.Unlock()
	observability.OptimisticApplies.WithLabelValues(actionSubmitComment).Inc()

	final, err := s.client.SubmitComment(ctx, s.postID, s.viewer, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionSubmitComment).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.post = store.SetCommentStatus(s.post, prov.ID, false, true)
		s.setErrorLocked(appErr)
		observability.Rollbacks.WithLabelValues(actionSubmitComment, appErr.Code).Inc()
		s.log.WarnContext(ctx, "comment submit failed", slog.String("code", appErr.Code), slog.String("temp_id", prov.ID))
		return appErr
	}
	if _, ok := store.FindComment(s.post, prov.ID); !ok {
		// The user discarded the entry while the call was in flight.
		observability.StaleDrops.WithLabelValues(actionSubmitComment).Inc()
		return nil
	}
	final.Sending, final.Failed, final.IsOptimistic = false, false, false
	s.post = store.ReplaceComment(s.post, prov.ID, final.Normalize())
	observability.Confirmations.WithLabelValues(actionSubmitComment).Inc()
	return nil
}

// EditComment waits for server confirmation before changing displayed
// content; nothing is applied optimistically.
func (s *Session) EditComment(ctx context.Context, commentID, content string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionEditComment, s.postID)
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return s.reject(actionEditComment, models.NewValidationError("Content is required"))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = s.now()
	c, ok := store.FindComment(s.post, commentID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if c.IsOptimistic {
		return s.reject(actionEditComment, models.NewValidationError("Comment has not been sent yet"))
	}

	post, err := s.client.EditComment(ctx, s.postID, commentID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionEditComment).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.setErrorLocked(appErr)
		observability.Rollbacks.WithLabelValues(actionEditComment, appErr.Code).Inc()
		s.log.WarnContext(ctx, "comment edit failed", slog.String("code", appErr.Code), slog.String("comment_id", commentID))
		return appErr
	}
	s.applyAuthoritativeLocked(post)
	observability.Confirmations.WithLabelValues(actionEditComment).Inc()
	return nil
}

// DeleteComment removes the comment after server confirmation. A provisional
// entry (sent or failed) is discarded locally without an upstream call.
func (s *Session) DeleteComment(ctx context.Context, commentID string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionDeleteComment, s.postID)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = s.now()
	c, ok := store.FindComment(s.post, commentID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if c.IsOptimistic {
		s.post = store.RemoveComment(s.post, commentID)
		s.pagination.CommentPage = paging.ClampAfterMutation(s.pagination.CommentPage, s.post.CommentCount(), s.cfg.CommentsPerPage)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	post, err := s.client.DeleteComment(ctx, s.postID, commentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionDeleteComment).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.setErrorLocked(appErr)
		observability.Rollbacks.WithLabelValues(actionDeleteComment, appErr.Code).Inc()
		s.log.WarnContext(ctx, "comment delete failed", slog.String("code", appErr.Code), slog.String("comment_id", commentID))
		return appErr
	}
	s.applyAuthoritativeLocked(post)
	observability.Confirmations.WithLabelValues(actionDeleteComment).Inc()
	return nil
}

// ToggleCommentLike flips the viewer's membership in the comment's like set
// optimistically. A failed call restores exactly the pre-action membership;
// there is no entry to flag, so the revert is silent.
func (s *Session) ToggleCommentLike(ctx context.Context, commentID string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionToggleCommentLike, s.postID)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = s.now()
	c, ok := store.FindComment(s.post, commentID)
	if !ok || c.IsOptimistic {
		s.mu.Unlock()
		return nil
	}
	// Membership is read from the current aggregate at apply time, so rapid
	// repeated toggles serialize instead of acting on stale closures.
	before := store.CommentLikedBy(s.post, commentID, s.viewer.ID)
	s.post = store.PatchCommentLikes(s.post, commentID, s.viewer.ID, !before)
	s.mu.Unlock()
	observability.OptimisticApplies.WithLabelValues(actionToggleCommentLike).Inc()

	err := s.client.ToggleCommentLike(ctx, s.postID, commentID, s.viewer.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionToggleCommentLike).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.post = store.PatchCommentLikes(s.post, commentID, s.viewer.ID, before)
		observability.Rollbacks.WithLabelValues(actionToggleCommentLike, appErr.Code).Inc()
		s.log.WarnContext(ctx, "comment like reverted", slog.String("code", appErr.Code), slog.String("comment_id", commentID))
		return appErr
	}
	observability.Confirmations.WithLabelValues(actionToggleCommentLike).Inc()
	return nil
}

// SubmitReply mirrors SubmitComment one level down the tree.
func (s *Session) SubmitReply(ctx context.Context, commentID, content string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionSubmitReply, s.postID)
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return s.reject(actionSubmitReply, models.NewValidationError("Content is required"))
	}

	now := s.now()
	prov := models.Reply{
		ID:           models.NewProvisionalID(),
		Content:      content,
		Author:       s.viewer,
		CreatedAt:    now,
		UpdatedAt:    now,
		Sending:      true,
		IsOptimistic: true,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = now
	if _, ok := store.FindComment(s.post, commentID); !ok {
		s.mu.Unlock()
		return nil
	}
	s.post = store.InsertReply(s.post, commentID, prov, store.Back)
	// New replies reset the disclosure window to its first page.
	st := s.pagination.ReplyStateFor(commentID)
	st.Page = 1
	s.pagination.Replies[commentID] = st
	s.mu.Unlock()
	observability.OptimisticApplies.WithLabelValues(actionSubmitReply).Inc()

	final, err := s.client.SubmitReply(ctx, s.postID, commentID, s.viewer, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionSubmitReply).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.post = store.SetReplyStatus(s.post, commentID, prov.ID, false, true)
		s.setErrorLocked(appErr)
		observability.Rollbacks.WithLabelValues(actionSubmitReply, appErr.Code).Inc()
		s.log.WarnContext(ctx, "reply submit failed", slog.String("code", appErr.Code), slog.String("temp_id", prov.ID))
		return appErr
	}
	if _, ok := store.FindReply(s.post, commentID, prov.ID); !ok {
		observability.StaleDrops.WithLabelValues(actionSubmitReply).Inc()
		return nil
	}
	final.Sending, final.Failed, final.IsOptimistic = false, false, false
	s.post = store.ReplaceReply(s.post, commentID, prov.ID, final.Normalize())
	observability.Confirmations.WithLabelValues(actionSubmitReply).Inc()
	return nil
}

// EditReply waits for confirmation, like EditComment.
func (s *Session) EditReply(ctx context.Context, commentID, replyID, content string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionEditReply, s.postID)
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return s.reject(actionEditReply, models.NewValidationError("Content is required"))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = s.now()
	r, ok := store.FindReply(s.post, commentID, replyID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if r.IsOptimistic {
		return s.reject(actionEditReply, models.NewValidationError("Reply has not been sent yet"))
	}

	post, err := s.client.EditReply(ctx, s.postID, commentID, replyID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionEditReply).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.setErrorLocked(appErr)
		observability.Rollbacks.WithLabelValues(actionEditReply, appErr.Code).Inc()
		return appErr
	}
	s.applyAuthoritativeLocked(post)
	observability.Confirmations.WithLabelValues(actionEditReply).Inc()
	return nil
}

// DeleteReply removes a reply after confirmation; provisional replies are
// discarded locally.
func (s *Session) DeleteReply(ctx context.Context, commentID, replyID string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionDeleteReply, s.postID)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = s.now()
	r, ok := store.FindReply(s.post, commentID, replyID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if r.IsOptimistic {
		s.post = store.RemoveReply(s.post, commentID, replyID)
		s.clampReplyPageLocked(commentID)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	post, err := s.client.DeleteReply(ctx, s.postID, commentID, replyID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionDeleteReply).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.setErrorLocked(appErr)
		observability.Rollbacks.WithLabelValues(actionDeleteReply, appErr.Code).Inc()
		return appErr
	}
	s.applyAuthoritativeLocked(post)
	observability.Confirmations.WithLabelValues(actionDeleteReply).Inc()
	return nil
}

// ToggleReplyLike mirrors ToggleCommentLike for replies.
func (s *Session) ToggleReplyLike(ctx context.Context, commentID, replyID string) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionToggleReplyLike, s.postID)
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.touchedAt = s.now()
	r, ok := store.FindReply(s.post, commentID, replyID)
	if !ok || r.IsOptimistic {
		s.mu.Unlock()
		return nil
	}
	before := store.ReplyLikedBy(s.post, commentID, replyID, s.viewer.ID)
	s.post = store.PatchReplyLikes(s.post, commentID, replyID, s.viewer.ID, !before)
	s.mu.Unlock()
	observability.OptimisticApplies.WithLabelValues(actionToggleReplyLike).Inc()

	err := s.client.ToggleReplyLike(ctx, s.postID, commentID, replyID, s.viewer.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.StaleDrops.WithLabelValues(actionToggleReplyLike).Inc()
		return nil
	}
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.post = store.PatchReplyLikes(s.post, commentID, replyID, s.viewer.ID, before)
		observability.Rollbacks.WithLabelValues(actionToggleReplyLike, appErr.Code).Inc()
		return appErr
	}
	observability.Confirmations.WithLabelValues(actionToggleReplyLike).Inc()
	return nil
}

// Refresh replaces the aggregate with a fresh authoritative fetch.
func (s *Session) Refresh(ctx context.Context) error {
	ctx, span := observability.StartDispatchSpan(ctx, actionRefresh, s.postID)
	defer span.End()

	post, err := s.client.FetchPost(ctx, s.postID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.touchedAt = s.now()
	if err != nil {
		appErr := transport.Classify(err)
		observability.RecordErrorInContext(ctx, appErr)
		s.setErrorLocked(appErr)
		return appErr
	}
	s.applyAuthoritativeLocked(post)
	return nil
}

// FetchLikers passes through to the upstream; the session adds nothing.
func (s *Session) FetchLikers(ctx context.Context, limit int) ([]models.UserSummary, error) {
	likers, err := s.client.FetchLikers(ctx, s.postID, limit)
	if err != nil {
		return nil, transport.Classify(err)
	}
	return likers, nil
}

// LoadMoreComments advances the comment window one page, if there is one.
func (s *Session) LoadMoreComments() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()
	info := paging.Describe(s.post.CommentCount(), s.pagination.CommentPage, s.cfg.CommentsPerPage)
	if !info.HasMore {
		return false
	}
	s.pagination.CommentPage++
	return true
}

// PreviousComments walks the comment window one page back.
func (s *Session) PreviousComments() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()
	if s.pagination.CommentPage == 0 {
		return false
	}
	s.pagination.CommentPage--
	return true
}

// SetSort switches the comment ordering and rewinds to the first page.
func (s *Session) SetSort(key sorting.Key) error {
	if !key.Valid() {
		return s.reject("set_sort", models.NewValidationError("Unknown sort key"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()
	if key != s.sortKey {
		s.sortKey = key
		s.pagination.CommentPage = 0
	}
	return nil
}

// ToggleReplies expands or collapses one comment's reply list. Expanding
// always lands on the first reply page.
func (s *Session) ToggleReplies(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()
	if _, ok := store.FindComment(s.post, commentID); !ok {
		return false
	}
	st := s.pagination.ReplyStateFor(commentID)
	st.Expanded = !st.Expanded
	st.Page = 1
	s.pagination.Replies[commentID] = st
	return st.Expanded
}

// LoadMoreReplies advances an expanded comment's reply window one page.
func (s *Session) LoadMoreReplies(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()
	c, ok := store.FindComment(s.post, commentID)
	if !ok {
		return false
	}
	st := s.pagination.ReplyStateFor(commentID)
	if !st.Expanded {
		return false
	}
	info := paging.ReplyInfo(len(c.Replies), st, s.cfg.CollapsedReplyCount, s.cfg.ExpandedReplyPageSize)
	if !info.HasMore {
		return false
	}
	st.Page++
	s.pagination.Replies[commentID] = st
	return true
}

// applyAuthoritativeLocked replaces the aggregate with upstream truth and
// re-validates every window against the new list lengths. Reply states for
// comments that no longer exist are dropped. Caller holds the lock.
func (s *Session) applyAuthoritativeLocked(post models.Post) {
	s.post = store.SetPost(s.post, post)
	s.pagination.CommentPage = paging.ClampAfterMutation(s.pagination.CommentPage, s.post.CommentCount(), s.cfg.CommentsPerPage)
	for id, st := range s.pagination.Replies {
		c, ok := store.FindComment(s.post, id)
		if !ok {
			delete(s.pagination.Replies, id)
			continue
		}
		s.pagination.Replies[id] = paging.ClampReplyPage(st, len(c.Replies), s.cfg.ExpandedReplyPageSize)
	}
}

func (s *Session) clampReplyPageLocked(commentID string) {
	c, ok := store.FindComment(s.post, commentID)
	if !ok {
		delete(s.pagination.Replies, commentID)
		return
	}
	st := s.pagination.ReplyStateFor(commentID)
	s.pagination.Replies[commentID] = paging.ClampReplyPage(st, len(c.Replies), s.cfg.ExpandedReplyPageSize)
}

// reject records a pre-dispatch validation failure on the error channel.
// Nothing was applied and nothing was sent.
func (s *Session) reject(action string, appErr *models.AppError) error {
	s.mu.Lock()
	s.setErrorLocked(appErr)
	s.mu.Unlock()
	observability.Rollbacks.WithLabelValues(action, appErr.Code).Inc()
	return appErr
}

func (s *Session) setErrorLocked(appErr *models.AppError) {
	s.lastErr = appErr.Message
	s.errAt = s.now()
}
