package cache

import (
	"context"
	"fmt"
	"time"

	"pitboard/internal/models"
	"pitboard/internal/observability"
	"pitboard/internal/transport"
)

// Client decorates an upstream transport client with read caching and
// per-operation instrumentation. Post fetches are served cache-aside;
// every mutation invalidates the post's cached aggregate so the next
// session open sees upstream truth.
type Client struct {
	inner transport.Client
	ttl   time.Duration
}

// Wrap builds the caching decorator around inner.
func Wrap(inner transport.Client, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{inner: inner, ttl: ttl}
}

func postKey(postID string) string {
	return "post:" + postID
}

func likersKey(postID string, limit int) string {
	return fmt.Sprintf("likers:%s:%d", postID, limit)
}

func (c *Client) invalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, postKey(postID))
}

func (c *Client) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.UpstreamCalls.WithLabelValues(op, outcome).Inc()
}

func (c *Client) FetchPost(ctx context.Context, postID string) (models.Post, error) {
	var post models.Post
	found, err := GetJSON(ctx, postKey(postID), &post)
	if err == nil && found {
		observability.CacheHits.WithLabelValues("post").Inc()
		return post, nil
	}
	observability.CacheMisses.WithLabelValues("post").Inc()

	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpFetchPost)
	defer span.End()
	post, err = c.inner.FetchPost(ctx, postID)
	c.record(transport.OpFetchPost, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Post{}, err
	}
	_ = SetJSON(ctx, postKey(postID), post, c.ttl)
	return post, nil
}

func (c *Client) SubmitComment(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpSubmitComment)
	defer span.End()
	cmt, err := c.inner.SubmitComment(ctx, postID, author, content)
	c.record(transport.OpSubmitComment, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Comment{}, err
	}
	c.invalidatePost(ctx, postID)
	return cmt, nil
}

func (c *Client) EditComment(ctx context.Context, postID, commentID, content string) (models.Post, error) {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpEditComment)
	defer span.End()
	post, err := c.inner.EditComment(ctx, postID, commentID, content)
	c.record(transport.OpEditComment, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Post{}, err
	}
	c.invalidatePost(ctx, postID)
	return post, nil
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) (models.Post, error) {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpDeleteComment)
	defer span.End()
	post, err := c.inner.DeleteComment(ctx, postID, commentID)
	c.record(transport.OpDeleteComment, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Post{}, err
	}
	c.invalidatePost(ctx, postID)
	return post, nil
}

func (c *Client) ToggleCommentLike(ctx context.Context, postID, commentID, userID string) error {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpToggleCommentLike)
	defer span.End()
	err := c.inner.ToggleCommentLike(ctx, postID, commentID, userID)
	c.record(transport.OpToggleCommentLike, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return err
	}
	c.invalidatePost(ctx, postID)
	return nil
}

func (c *Client) SubmitReply(ctx context.Context, postID, commentID string, author models.UserSummary, content string) (models.Reply, error) {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpSubmitReply)
	defer span.End()
	r, err := c.inner.SubmitReply(ctx, postID, commentID, author, content)
	c.record(transport.OpSubmitReply, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Reply{}, err
	}
	c.invalidatePost(ctx, postID)
	return r, nil
}

func (c *Client) EditReply(ctx context.Context, postID, commentID, replyID, content string) (models.Post, error) {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpEditReply)
	defer span.End()
	post, err := c.inner.EditReply(ctx, postID, commentID, replyID, content)
	c.record(transport.OpEditReply, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Post{}, err
	}
	c.invalidatePost(ctx, postID)
	return post, nil
}

func (c *Client) DeleteReply(ctx context.Context, postID, commentID, replyID string) (models.Post, error) {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpDeleteReply)
	defer span.End()
	post, err := c.inner.DeleteReply(ctx, postID, commentID, replyID)
	c.record(transport.OpDeleteReply, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return models.Post{}, err
	}
	c.invalidatePost(ctx, postID)
	return post, nil
}

func (c *Client) ToggleReplyLike(ctx context.Context, postID, commentID, replyID, userID string) error {
	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpToggleReplyLike)
	defer span.End()
	err := c.inner.ToggleReplyLike(ctx, postID, commentID, replyID, userID)
	c.record(transport.OpToggleReplyLike, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return err
	}
	c.invalidatePost(ctx, postID)
	return nil
}

func (c *Client) FetchLikers(ctx context.Context, postID string, limit int) ([]models.UserSummary, error) {
	key := likersKey(postID, limit)
	var likers []models.UserSummary
	found, err := GetJSON(ctx, key, &likers)
	if err == nil && found {
		observability.CacheHits.WithLabelValues("likers").Inc()
		return likers, nil
	}
	observability.CacheMisses.WithLabelValues("likers").Inc()

	ctx, span := observability.StartUpstreamSpan(ctx, transport.OpFetchLikers)
	defer span.End()
	likers, err = c.inner.FetchLikers(ctx, postID, limit)
	c.record(transport.OpFetchLikers, err)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	_ = SetJSON(ctx, key, likers, c.ttl)
	return likers, nil
}
