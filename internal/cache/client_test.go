package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitboard/internal/models"
	"pitboard/internal/transport"
)

func setupRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	InitRedis(mr.Addr())
	t.Cleanup(func() { client = nil })
}

func seedUpstream() *transport.MemoryClient {
	upstream := transport.NewMemoryClient()
	upstream.SeedPost(models.Post{
		ID:      "p1",
		Content: "scaled out at resistance",
		Author:  models.UserSummary{ID: "u1", Username: "tester"},
		Likes:   []string{"u2", "u3"},
		Comments: []models.Comment{
			{ID: "c1", Content: "good exit", Author: models.UserSummary{ID: "u2"}},
		},
	})
	return upstream
}

func TestFetchPostCacheAside(t *testing.T) {
	setupRedis(t)
	upstream := seedUpstream()
	c := Wrap(upstream, time.Minute)
	ctx := context.Background()

	first, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, first.Comments, 1)

	// Mutate upstream behind the cache's back; the cached aggregate wins
	// until it is invalidated.
	_, err = upstream.SubmitComment(ctx, "p1", models.UserSummary{ID: "u9"}, "behind the cache")
	require.NoError(t, err)

	second, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, second.Comments, 1)
}

func TestMutationInvalidatesPost(t *testing.T) {
	setupRedis(t)
	upstream := seedUpstream()
	c := Wrap(upstream, time.Minute)
	ctx := context.Background()

	_, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)

	_, err = c.SubmitComment(ctx, "p1", models.UserSummary{ID: "u4"}, "fresh take")
	require.NoError(t, err)

	post, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, post.Comments, 2)
}

func TestLikeInvalidatesPost(t *testing.T) {
	setupRedis(t)
	upstream := seedUpstream()
	c := Wrap(upstream, time.Minute)
	ctx := context.Background()

	_, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, c.ToggleCommentLike(ctx, "p1", "c1", "u7"))

	post, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, post.Comments[0].Likes, "u7")
}

func TestFetchLikersCached(t *testing.T) {
	setupRedis(t)
	upstream := seedUpstream()
	c := Wrap(upstream, time.Minute)
	ctx := context.Background()

	likers, err := c.FetchLikers(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, likers, 2)

	cached, err := c.FetchLikers(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, likers, cached)
}

func TestUncachedPassthrough(t *testing.T) {
	client = nil
	upstream := seedUpstream()
	c := Wrap(upstream, time.Minute)
	ctx := context.Background()

	post, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)

	_, err = c.FetchPost(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestUpstreamErrorsAreNotCached(t *testing.T) {
	setupRedis(t)
	upstream := seedUpstream()
	upstream.FailNext(transport.OpFetchPost, models.NewNetworkError(nil))
	c := Wrap(upstream, time.Minute)
	ctx := context.Background()

	_, err := c.FetchPost(ctx, "p1")
	require.Error(t, err)

	post, err := c.FetchPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", post.ID)
}
