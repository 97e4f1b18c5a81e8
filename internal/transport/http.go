package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pitboard/internal/models"
)

// HTTPConfig configures the HTTP adapter. Attempts/Delay bound the retry
// budget for read paths; mutations are never retried.
type HTTPConfig struct {
	BaseURL  string
	Attempts int
	Delay    time.Duration
	Timeout  time.Duration
}

// HTTPClient talks to the upstream backend over its REST surface. It is a
// thin codec around the Client contract: requests carry the acting user in
// headers, responses decode straight into the domain models.
type HTTPClient struct {
	base     string
	http     *http.Client
	attempts int
	delay    time.Duration
}

// NewHTTPClient builds an adapter against cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &HTTPClient{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		attempts: attempts,
		delay:    delay,
	}
}

func (c *HTTPClient) FetchPost(ctx context.Context, postID string) (models.Post, error) {
	var post models.Post
	path := fmt.Sprintf("/api/posts/%s", url.PathEscape(postID))
	if err := c.getWithRetry(ctx, path, &post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) SubmitComment(ctx context.Context, postID string, author models.UserSummary, content string) (models.Comment, error) {
	var comment models.Comment
	path := fmt.Sprintf("/api/posts/%s/comments", url.PathEscape(postID))
	err := c.do(ctx, http.MethodPost, path, author, map[string]string{"content": content}, &comment)
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (c *HTTPClient) EditComment(ctx context.Context, postID, commentID, content string) (models.Post, error) {
	var post models.Post
	path := fmt.Sprintf("/api/posts/%s/comments/%s", url.PathEscape(postID), url.PathEscape(commentID))
	err := c.do(ctx, http.MethodPut, path, models.UserSummary{}, map[string]string{"content": content}, &post)
	if err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) DeleteComment(ctx context.Context, postID, commentID string) (models.Post, error) {
	var post models.Post
	path := fmt.Sprintf("/api/posts/%s/comments/%s", url.PathEscape(postID), url.PathEscape(commentID))
	err := c.do(ctx, http.MethodDelete, path, models.UserSummary{}, nil, &post)
	if err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) ToggleCommentLike(ctx context.Context, postID, commentID, userID string) error {
	path := fmt.Sprintf("/api/posts/%s/comments/%s/like", url.PathEscape(postID), url.PathEscape(commentID))
	return c.do(ctx, http.MethodPost, path, models.UserSummary{ID: userID}, nil, nil)
}

func (c *HTTPClient) SubmitReply(ctx context.Context, postID, commentID string, author models.UserSummary, content string) (models.Reply, error) {
	var reply models.Reply
	path := fmt.Sprintf("/api/posts/%s/comments/%s/replies", url.PathEscape(postID), url.PathEscape(commentID))
	err := c.do(ctx, http.MethodPost, path, author, map[string]string{"content": content}, &reply)
	if err != nil {
		return models.Reply{}, err
	}
	return reply, nil
}

func (c *HTTPClient) EditReply(ctx context.Context, postID, commentID, replyID, content string) (models.Post, error) {
	var post models.Post
	path := fmt.Sprintf("/api/posts/%s/comments/%s/replies/%s",
		url.PathEscape(postID), url.PathEscape(commentID), url.PathEscape(replyID))
	err := c.do(ctx, http.MethodPut, path, models.UserSummary{}, map[string]string{"content": content}, &post)
	if err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) DeleteReply(ctx context.Context, postID, commentID, replyID string) (models.Post, error) {
	var post models.Post
	path := fmt.Sprintf("/api/posts/%s/comments/%s/replies/%s",
		url.PathEscape(postID), url.PathEscape(commentID), url.PathEscape(replyID))
	err := c.do(ctx, http.MethodDelete, path, models.UserSummary{}, nil, &post)
	if err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (c *HTTPClient) ToggleReplyLike(ctx context.Context, postID, commentID, replyID, userID string) error {
	path := fmt.Sprintf("/api/posts/%s/comments/%s/replies/%s/like",
		url.PathEscape(postID), url.PathEscape(commentID), url.PathEscape(replyID))
	return c.do(ctx, http.MethodPost, path, models.UserSummary{ID: userID}, nil, nil)
}

func (c *HTTPClient) FetchLikers(ctx context.Context, postID string, limit int) ([]models.UserSummary, error) {
	var likers []models.UserSummary
	path := fmt.Sprintf("/api/posts/%s/likers?limit=%s", url.PathEscape(postID), strconv.Itoa(limit))
	if err := c.getWithRetry(ctx, path, &likers); err != nil {
		return nil, err
	}
	return likers, nil
}

// getWithRetry wraps a GET in the bounded poll pattern: network failures are
// retried until the attempt budget runs out, anything else aborts.
func (c *HTTPClient) getWithRetry(ctx context.Context, path string, out any) error {
	var lastErr error
	err := Poll(ctx, c.attempts, c.delay, func(ctx context.Context) (bool, error) {
		err := c.do(ctx, http.MethodGet, path, models.UserSummary{}, nil, out)
		if err == nil {
			return true, nil
		}
		if Classify(err).Code == models.CodeNetwork {
			lastErr = err
			return false, nil
		}
		return false, err
	})
	if err == ErrPollExhausted && lastErr != nil {
		return lastErr
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, actor models.UserSummary, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return models.NewUnknownError(err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return models.NewUnknownError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor.ID != "" {
		req.Header.Set("X-User-ID", actor.ID)
		req.Header.Set("X-User-Name", actor.Username)
		if actor.AvatarURL != "" {
			req.Header.Set("X-User-Avatar", actor.AvatarURL)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewUnknownError(err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body models.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return models.NewValidationError(msg)
	case resp.StatusCode == http.StatusNotFound:
		return models.NewNotFoundError("resource", msg)
	default:
		return models.NewServerRejectionError(fmt.Errorf("%s (status %d)", msg, resp.StatusCode))
	}
}
