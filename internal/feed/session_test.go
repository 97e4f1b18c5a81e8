package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitboard/internal/models"
	"pitboard/internal/projector"
	"pitboard/internal/sorting"
	"pitboard/internal/transport"
)

var (
	viewer = models.UserSummary{ID: "u-viewer", Username: "viewer"}
	poster = models.UserSummary{ID: "u-poster", Username: "poster"}
)

// stubClient overrides selected operations with function fields and falls
// back to the in-memory upstream for everything else.
type stubClient struct {
	*transport.MemoryClient
	submitComment     func(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error)
	editComment       func(ctx context.Context, postID, commentID, content string) (models.Post, error)
	toggleCommentLike func(ctx context.Context, postID, commentID, userID string) error
}

func (c *stubClient) SubmitComment(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
	if c.submitComment != nil {
		return c.submitComment(ctx, postID, author, content)
	}
	return c.MemoryClient.SubmitComment(ctx, postID, author, content)
}

func (c *stubClient) EditComment(ctx context.Context, postID, commentID, content string) (models.Post, error) {
	if c.editComment != nil {
		return c.editComment(ctx, postID, commentID, content)
	}
	return c.MemoryClient.EditComment(ctx, postID, commentID, content)
}

func (c *stubClient) ToggleCommentLike(ctx context.Context, postID, commentID, userID string) error {
	if c.toggleCommentLike != nil {
		return c.toggleCommentLike(ctx, postID, commentID, userID)
	}
	return c.MemoryClient.ToggleCommentLike(ctx, postID, commentID, userID)
}

func testPost(commentCount int) models.Post {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := models.Post{
		ID:        "p1",
		Content:   "closed the gold short, writeup inside",
		Author:    poster,
		CreatedAt: base,
		UpdatedAt: base,
	}
	for i := 0; i < commentCount; i++ {
		p.Comments = append(p.Comments, models.Comment{
			ID:        fmt.Sprintf("c%d", i+1),
			Content:   fmt.Sprintf("comment %d", i+1),
			Author:    poster,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return p
}

func newTestSession(t *testing.T, client transport.Client) *Session {
	t.Helper()
	cfg := DefaultConfig()
	s, err := Open(context.Background(), client, "p1", viewer, cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func viewComment(t *testing.T, v projector.View, id string) models.Comment {
	t.Helper()
	for _, c := range v.Comments {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("comment %s not in view", id)
	return models.Comment{}
}

func TestOpen(t *testing.T) {
	t.Run("fetch failure is classified", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		_, err := Open(context.Background(), upstream, "missing", viewer, DefaultConfig())
		require.Error(t, err)
		assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
	})

	t.Run("view reflects seeded post", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(4))
		s := newTestSession(t, upstream)

		v := s.View()
		assert.Equal(t, "p1", v.PostID)
		assert.Len(t, v.Comments, 4)
		assert.Equal(t, 4, v.CommentInfo.Total)
		assert.Equal(t, sorting.Default, v.SortKey)
	})
}

func TestSubmitComment(t *testing.T) {
	t.Run("confirmed entry replaces provisional in place", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(2))
		s := newTestSession(t, upstream)

		require.NoError(t, s.SubmitComment(context.Background(), "nice entry"))

		v := s.View()
		require.Len(t, v.Comments, 3)
		first := v.Comments[0]
		assert.False(t, models.IsProvisionalID(first.ID))
		assert.Equal(t, "nice entry", first.Content)
		assert.False(t, first.Sending)
		assert.False(t, first.Failed)
		assert.False(t, first.IsOptimistic)
	})

	t.Run("provisional entry is visible while in flight", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(2))
		started := make(chan struct{})
		release := make(chan struct{})
		client := &stubClient{MemoryClient: upstream}
		client.submitComment = func(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
			close(started)
			<-release
			return upstream.SubmitComment(ctx, postID, author, content)
		}
		s := newTestSession(t, client)

		done := make(chan error, 1)
		go func() { done <- s.SubmitComment(context.Background(), "pending thought") }()
		<-started

		v := s.View()
		require.Len(t, v.Comments, 3)
		assert.True(t, models.IsProvisionalID(v.Comments[0].ID))
		assert.True(t, v.Comments[0].Sending)
		assert.True(t, v.Comments[0].IsOptimistic)

		close(release)
		require.NoError(t, <-done)
		v = s.View()
		assert.False(t, models.IsProvisionalID(v.Comments[0].ID))
	})

	t.Run("failure keeps entry visible and flagged", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		upstream.FailNext(transport.OpSubmitComment, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		err := s.SubmitComment(context.Background(), "lost to the void")
		require.Error(t, err)
		assert.Equal(t, models.CodeNetwork, models.ErrorCode(err))

		v := s.View()
		require.Len(t, v.Comments, 2)
		first := v.Comments[0]
		assert.True(t, models.IsProvisionalID(first.ID))
		assert.True(t, first.Failed)
		assert.False(t, first.Sending)
		assert.Equal(t, "Network Error", v.Error)
	})

	t.Run("empty content is rejected before anything is applied", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		s := newTestSession(t, upstream)

		err := s.SubmitComment(context.Background(), "   ")
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

		v := s.View()
		assert.Len(t, v.Comments, 1)
		assert.NotEmpty(t, v.Error)
	})

	t.Run("submit resets the comment window to the first page", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(15))
		s := newTestSession(t, upstream)

		require.True(t, s.LoadMoreComments())
		assert.Equal(t, 2, s.View().CommentInfo.CurrentPage)

		require.NoError(t, s.SubmitComment(context.Background(), "back to the top"))
		assert.Equal(t, 1, s.View().CommentInfo.CurrentPage)
	})

	t.Run("late confirmation is dropped after local discard", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		started := make(chan struct{})
		release := make(chan struct{})
		client := &stubClient{MemoryClient: upstream}
		client.submitComment = func(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
			close(started)
			<-release
			return upstream.SubmitComment(ctx, postID, author, content)
		}
		s := newTestSession(t, client)

		done := make(chan error, 1)
		go func() { done <- s.SubmitComment(context.Background(), "changed my mind") }()
		<-started

		tmpID := s.View().Comments[0].ID
		require.True(t, models.IsProvisionalID(tmpID))
		require.NoError(t, s.DeleteComment(context.Background(), tmpID))

		close(release)
		require.NoError(t, <-done)
		assert.Len(t, s.View().Comments, 1)
	})

	t.Run("late confirmation is dropped after close", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		started := make(chan struct{})
		release := make(chan struct{})
		client := &stubClient{MemoryClient: upstream}
		client.submitComment = func(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
			close(started)
			<-release
			return upstream.SubmitComment(ctx, postID, author, content)
		}
		s, err := Open(context.Background(), client, "p1", viewer, DefaultConfig())
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- s.SubmitComment(context.Background(), "too slow") }()
		<-started
		s.Close()
		close(release)
		require.NoError(t, <-done)
	})
}

func TestEditComment(t *testing.T) {
	t.Run("content changes only after confirmation", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(2))
		started := make(chan struct{})
		release := make(chan struct{})
		client := &stubClient{MemoryClient: upstream}
		client.editComment = func(ctx context.Context, postID, commentID, content string) (models.Post, error) {
			close(started)
			<-release
			return upstream.EditComment(ctx, postID, commentID, content)
		}
		s := newTestSession(t, client)

		done := make(chan error, 1)
		go func() { done <- s.EditComment(context.Background(), "c1", "revised take") }()
		<-started
		assert.Equal(t, "comment 1", viewComment(t, s.View(), "c1").Content)

		close(release)
		require.NoError(t, <-done)
		edited := viewComment(t, s.View(), "c1")
		assert.Equal(t, "revised take", edited.Content)
		assert.True(t, edited.IsEdited())
	})

	t.Run("failure leaves content untouched and surfaces the error", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		upstream.FailNext(transport.OpEditComment, models.NewServerRejectionError(nil))
		s := newTestSession(t, upstream)

		err := s.EditComment(context.Background(), "c1", "never lands")
		require.Error(t, err)

		v := s.View()
		assert.Equal(t, "comment 1", viewComment(t, v, "c1").Content)
		assert.Equal(t, "Request rejected by server", v.Error)
	})

	t.Run("unsent entries cannot be edited", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(0))
		upstream.FailNext(transport.OpSubmitComment, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		_ = s.SubmitComment(context.Background(), "will fail")
		tmpID := s.View().Comments[0].ID

		err := s.EditComment(context.Background(), tmpID, "fixup")
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	})
}

func TestDeleteComment(t *testing.T) {
	t.Run("removal clamps the comment window", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(21))
		s := newTestSession(t, upstream)

		require.True(t, s.LoadMoreComments())
		require.True(t, s.LoadMoreComments())
		require.Equal(t, 3, s.View().CommentInfo.CurrentPage)

		require.NoError(t, s.DeleteComment(context.Background(), "c21"))

		v := s.View()
		assert.Equal(t, 20, v.CommentInfo.Total)
		assert.Equal(t, 2, v.CommentInfo.CurrentPage)
		assert.Len(t, v.Comments, 10)
	})

	t.Run("failed provisional entry is discarded locally", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		upstream.FailNext(transport.OpSubmitComment, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		_ = s.SubmitComment(context.Background(), "doomed")
		tmpID := s.View().Comments[0].ID
		require.True(t, models.IsProvisionalID(tmpID))

		require.NoError(t, s.DeleteComment(context.Background(), tmpID))
		assert.Len(t, s.View().Comments, 1)
	})

	t.Run("failure keeps the comment and surfaces the error", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(2))
		upstream.FailNext(transport.OpDeleteComment, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		err := s.DeleteComment(context.Background(), "c1")
		require.Error(t, err)
		v := s.View()
		assert.Len(t, v.Comments, 2)
		assert.Equal(t, "Network Error", v.Error)
	})
}

func TestToggleCommentLike(t *testing.T) {
	t.Run("toggle on then off", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		s := newTestSession(t, upstream)

		require.NoError(t, s.ToggleCommentLike(context.Background(), "c1"))
		assert.Contains(t, viewComment(t, s.View(), "c1").Likes, viewer.ID)

		require.NoError(t, s.ToggleCommentLike(context.Background(), "c1"))
		assert.NotContains(t, viewComment(t, s.View(), "c1").Likes, viewer.ID)
	})

	t.Run("failure reverts silently", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		upstream.FailNext(transport.OpToggleCommentLike, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		err := s.ToggleCommentLike(context.Background(), "c1")
		require.Error(t, err)

		v := s.View()
		assert.NotContains(t, viewComment(t, v, "c1").Likes, viewer.ID)
		assert.Empty(t, v.Error)
	})

	t.Run("interleaved toggles converge when one fails", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(1))
		firstStarted := make(chan struct{})
		firstRelease := make(chan struct{})
		var calls int
		client := &stubClient{MemoryClient: upstream}
		client.toggleCommentLike = func(ctx context.Context, postID, commentID, userID string) error {
			calls++
			if calls == 1 {
				close(firstStarted)
				<-firstRelease
				return models.NewNetworkError(nil)
			}
			return upstream.ToggleCommentLike(ctx, postID, commentID, userID)
		}
		s := newTestSession(t, client)

		done := make(chan error, 1)
		go func() { done <- s.ToggleCommentLike(context.Background(), "c1") }()
		<-firstStarted
		// First toggle applied the like and is stuck in flight. The second
		// toggle reads the current state, so it removes the like again.
		require.Contains(t, viewComment(t, s.View(), "c1").Likes, viewer.ID)
		require.NoError(t, s.ToggleCommentLike(context.Background(), "c1"))

		close(firstRelease)
		require.Error(t, <-done)

		// The failed first toggle restores its own pre-action membership,
		// which matches the user's final intent of not-liked.
		assert.NotContains(t, viewComment(t, s.View(), "c1").Likes, viewer.ID)
	})

	t.Run("unsent entries are skipped", func(t *testing.T) {
		upstream := transport.NewMemoryClient()
		upstream.SeedPost(testPost(0))
		upstream.FailNext(transport.OpSubmitComment, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		_ = s.SubmitComment(context.Background(), "failed entry")
		tmpID := s.View().Comments[0].ID

		require.NoError(t, s.ToggleCommentLike(context.Background(), tmpID))
		assert.Empty(t, viewComment(t, s.View(), tmpID).Likes)
	})
}

func TestReplies(t *testing.T) {
	seedWithReplies := func(replyCount int) *transport.MemoryClient {
		upstream := transport.NewMemoryClient()
		p := testPost(1)
		base := p.CreatedAt
		for i := 0; i < replyCount; i++ {
			p.Comments[0].Replies = append(p.Comments[0].Replies, models.Reply{
				ID:        fmt.Sprintf("r%d", i+1),
				Content:   fmt.Sprintf("reply %d", i+1),
				Author:    poster,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			})
		}
		upstream.SeedPost(p)
		return upstream
	}

	t.Run("collapsed preview shows the first three", func(t *testing.T) {
		s := newTestSession(t, seedWithReplies(7))
		v := s.View()
		c := viewComment(t, v, "c1")
		require.Len(t, c.Replies, 3)
		assert.Equal(t, "r1", c.Replies[0].ID)
		info := v.ReplyInfo["c1"]
		assert.Equal(t, 7, info.Total)
		assert.True(t, info.HasMore)
	})

	t.Run("expanded paging walks five at a time", func(t *testing.T) {
		s := newTestSession(t, seedWithReplies(7))
		require.True(t, s.ToggleReplies("c1"))

		c := viewComment(t, s.View(), "c1")
		require.Len(t, c.Replies, 5)

		require.True(t, s.LoadMoreReplies("c1"))
		v := s.View()
		c = viewComment(t, v, "c1")
		require.Len(t, c.Replies, 2)
		assert.Equal(t, "r6", c.Replies[0].ID)
		assert.False(t, v.ReplyInfo["c1"].HasMore)
		assert.False(t, s.LoadMoreReplies("c1"))
	})

	t.Run("collapse resets to the preview", func(t *testing.T) {
		s := newTestSession(t, seedWithReplies(7))
		s.ToggleReplies("c1")
		s.LoadMoreReplies("c1")
		assert.False(t, s.ToggleReplies("c1"))
		c := viewComment(t, s.View(), "c1")
		assert.Len(t, c.Replies, 3)
	})

	t.Run("submitted reply is appended and confirmed", func(t *testing.T) {
		s := newTestSession(t, seedWithReplies(1))
		require.NoError(t, s.SubmitReply(context.Background(), "c1", "agreed"))

		s.ToggleReplies("c1")
		c := viewComment(t, s.View(), "c1")
		require.Len(t, c.Replies, 2)
		last := c.Replies[1]
		assert.False(t, models.IsProvisionalID(last.ID))
		assert.Equal(t, "agreed", last.Content)
	})

	t.Run("failed reply stays flagged", func(t *testing.T) {
		upstream := seedWithReplies(1)
		upstream.FailNext(transport.OpSubmitReply, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		err := s.SubmitReply(context.Background(), "c1", "lost")
		require.Error(t, err)

		s.ToggleReplies("c1")
		c := viewComment(t, s.View(), "c1")
		require.Len(t, c.Replies, 2)
		assert.True(t, c.Replies[1].Failed)
		assert.True(t, models.IsProvisionalID(c.Replies[1].ID))
	})

	t.Run("reply like failure reverts silently", func(t *testing.T) {
		upstream := seedWithReplies(2)
		upstream.FailNext(transport.OpToggleReplyLike, models.NewNetworkError(nil))
		s := newTestSession(t, upstream)

		err := s.ToggleReplyLike(context.Background(), "c1", "r1")
		require.Error(t, err)
		c := viewComment(t, s.View(), "c1")
		assert.Empty(t, c.Replies[0].Likes)
	})

	t.Run("reply edit and delete go through the upstream", func(t *testing.T) {
		s := newTestSession(t, seedWithReplies(4))
		require.NoError(t, s.EditReply(context.Background(), "c1", "r1", "sharper"))
		require.NoError(t, s.DeleteReply(context.Background(), "c1", "r4"))

		c := viewComment(t, s.View(), "c1")
		require.Len(t, c.Replies, 3)
		assert.Equal(t, "sharper", c.Replies[0].Content)
		assert.True(t, c.Replies[0].IsEdited())
	})
}

func TestSortAndPaging(t *testing.T) {
	upstream := transport.NewMemoryClient()
	p := testPost(12)
	p.Comments[4].Likes = []string{"a", "b", "c"}
	upstream.SeedPost(p)
	s := newTestSession(t, upstream)

	t.Run("sort change rewinds to the first page", func(t *testing.T) {
		require.True(t, s.LoadMoreComments())
		require.NoError(t, s.SetSort(sorting.MostLiked))

		v := s.View()
		assert.Equal(t, 1, v.CommentInfo.CurrentPage)
		assert.Equal(t, "c5", v.Comments[0].ID)
	})

	t.Run("unknown sort key is rejected", func(t *testing.T) {
		err := s.SetSort(sorting.Key("by_vibes"))
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	})

	t.Run("previous page walks back", func(t *testing.T) {
		require.NoError(t, s.SetSort(sorting.Newest))
		require.True(t, s.LoadMoreComments())
		require.True(t, s.PreviousComments())
		assert.False(t, s.PreviousComments())
		assert.Equal(t, 1, s.View().CommentInfo.CurrentPage)
	})

	t.Run("load more stops at the last page", func(t *testing.T) {
		require.True(t, s.LoadMoreComments())
		assert.False(t, s.LoadMoreComments())
	})
}

func TestErrorChannel(t *testing.T) {
	upstream := transport.NewMemoryClient()
	upstream.SeedPost(testPost(1))
	upstream.FailNext(transport.OpDeleteComment, models.NewNetworkError(nil))
	s := newTestSession(t, upstream)

	base := time.Now()
	offset := time.Duration(0)
	s.now = func() time.Time { return base.Add(offset) }

	_ = s.DeleteComment(context.Background(), "c1")
	msg, ok := s.LastError()
	require.True(t, ok)
	assert.Equal(t, "Network Error", msg)

	t.Run("expires after the TTL", func(t *testing.T) {
		offset = s.cfg.ErrorTTL + time.Second
		_, ok := s.LastError()
		assert.False(t, ok)
		assert.Empty(t, s.View().Error)
	})

	t.Run("clear empties it immediately", func(t *testing.T) {
		offset = 0
		upstream.FailNext(transport.OpDeleteComment, models.NewNetworkError(nil))
		_ = s.DeleteComment(context.Background(), "c1")
		_, ok := s.LastError()
		require.True(t, ok)

		s.ClearError()
		_, ok = s.LastError()
		assert.False(t, ok)
	})
}

func TestRefresh(t *testing.T) {
	upstream := transport.NewMemoryClient()
	upstream.SeedPost(testPost(3))
	s := newTestSession(t, upstream)

	other := models.UserSummary{ID: "u-other", Username: "other"}
	_, err := upstream.SubmitComment(context.Background(), "p1", other, "from elsewhere")
	require.NoError(t, err)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 4, s.View().CommentInfo.Total)
}

func TestManager(t *testing.T) {
	upstream := transport.NewMemoryClient()
	upstream.SeedPost(testPost(2))

	t.Run("open is idempotent per viewer and post", func(t *testing.T) {
		m := NewManager(upstream, DefaultConfig(), time.Minute)
		s1, err := m.Open(context.Background(), "p1", viewer)
		require.NoError(t, err)
		s2, err := m.Open(context.Background(), "p1", viewer)
		require.NoError(t, err)
		assert.Same(t, s1, s2)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("close forgets the session", func(t *testing.T) {
		m := NewManager(upstream, DefaultConfig(), time.Minute)
		_, err := m.Open(context.Background(), "p1", viewer)
		require.NoError(t, err)
		assert.True(t, m.Close(viewer.ID, "p1"))
		assert.False(t, m.Close(viewer.ID, "p1"))
		assert.Equal(t, 0, m.Len())
	})

	t.Run("idle sessions are reaped", func(t *testing.T) {
		m := NewManager(upstream, DefaultConfig(), time.Minute)
		s, err := m.Open(context.Background(), "p1", viewer)
		require.NoError(t, err)

		assert.Equal(t, 0, m.ReapIdle(time.Now()))
		assert.Equal(t, 1, m.ReapIdle(time.Now().Add(2*time.Minute)))
		assert.True(t, s.Closed())
		assert.Equal(t, 0, m.Len())
	})
}
