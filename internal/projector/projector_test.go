package projector

import (
	"fmt"
	"testing"
	"time"

	"pitboard/internal/models"
	"pitboard/internal/paging"
	"pitboard/internal/sorting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPost creates a post with n comments, oldest first in list order, where
// comment i carries i replies.
func buildPost(n int) models.Post {
	p := models.Post{ID: "p1", Content: "entry recap"}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := models.Comment{
			ID:        fmt.Sprintf("c%d", i+1),
			Content:   fmt.Sprintf("comment %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		for j := 0; j < i; j++ {
			c.Replies = append(c.Replies, models.Reply{ID: fmt.Sprintf("c%d-r%d", i+1, j+1)})
		}
		p.Comments = append(p.Comments, c)
	}
	return p
}

func TestProject(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	t.Run("windows the sorted comment list", func(t *testing.T) {
		t.Parallel()
		post := buildPost(25)
		view := Project(post, NewPaginationState(), sorting.Newest, cfg)

		require.Len(t, view.Comments, 10)
		// Newest first: c25 leads.
		assert.Equal(t, "c25", view.Comments[0].ID)
		assert.Equal(t, 25, view.CommentInfo.Total)
		assert.True(t, view.CommentInfo.HasMore)
		assert.False(t, view.CommentInfo.HasPrevious)
	})

	t.Run("second page picks up where the first left off", func(t *testing.T) {
		t.Parallel()
		post := buildPost(25)
		ps := NewPaginationState()
		ps.CommentPage = 1
		view := Project(post, ps, sorting.Newest, cfg)

		require.Len(t, view.Comments, 10)
		assert.Equal(t, "c15", view.Comments[0].ID)
		assert.Equal(t, 2, view.CommentInfo.CurrentPage)
	})

	t.Run("collapsed comments carry only the reply preview", func(t *testing.T) {
		t.Parallel()
		post := buildPost(25)
		view := Project(post, NewPaginationState(), sorting.Newest, cfg)

		// c25 has 24 replies; collapsed preview shows 3.
		assert.Len(t, view.Comments[0].Replies, 3)
		info := view.ReplyInfo["c25"]
		assert.Equal(t, 24, info.Total)
		assert.Equal(t, 3, info.DisplayedCount)
		assert.True(t, info.HasMore)
	})

	t.Run("expanded comment pages through its replies", func(t *testing.T) {
		t.Parallel()
		post := buildPost(10)
		ps := NewPaginationState()
		ps.Replies["c8"] = paging.ReplyState{Expanded: true, Page: 2}
		view := Project(post, ps, sorting.Oldest, cfg)

		var target models.Comment
		for _, c := range view.Comments {
			if c.ID == "c8" {
				target = c
			}
		}
		require.NotEmpty(t, target.ID)
		// c8 has 7 replies; page 2 at size 5 shows the last 2.
		require.Len(t, target.Replies, 2)
		assert.Equal(t, "c8-r6", target.Replies[0].ID)
		assert.Equal(t, 2, view.ReplyInfo["c8"].CurrentPage)
	})

	t.Run("projection leaves the aggregate untouched", func(t *testing.T) {
		t.Parallel()
		post := buildPost(25)
		before := fmt.Sprintf("%v", post)
		_ = Project(post, NewPaginationState(), sorting.MostReplies, cfg)
		assert.Equal(t, before, fmt.Sprintf("%v", post))
	})

	t.Run("re-deriving from the same inputs is deterministic", func(t *testing.T) {
		t.Parallel()
		post := buildPost(17)
		ps := NewPaginationState()
		ps.CommentPage = 1
		a := Project(post, ps, sorting.MostLiked, cfg)
		b := Project(post, ps, sorting.MostLiked, cfg)
		assert.Equal(t, a, b)
	})
}
