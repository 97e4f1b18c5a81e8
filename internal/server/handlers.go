package server

import (
	"github.com/gofiber/fiber/v2"

	"pitboard/internal/feed"
	"pitboard/internal/middleware"
	"pitboard/internal/models"
	"pitboard/internal/sorting"
)

type contentRequest struct {
	Content string `json:"content"`
}

type sortRequest struct {
	Key string `json:"key"`
}

// statusFor maps the failure taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeNetwork, models.CodeServerRejection:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// session resolves the open session for this viewer and post, or writes a
// 404 and returns nil.
func (s *Server) session(c *fiber.Ctx) *feed.Session {
	viewer := middleware.Viewer(c)
	sess, ok := s.manager.Get(viewer.ID, c.Params("postId"))
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("session", c.Params("postId")))
		return nil
	}
	return sess
}

func respondView(c *fiber.Ctx, sess *feed.Session) error {
	return c.JSON(sess.View())
}

// OpenSession fetches the post and opens a session for the viewer.
func (s *Server) OpenSession(c *fiber.Ctx) error {
	viewer := middleware.Viewer(c)
	sess, err := s.manager.Open(c.UserContext(), c.Params("postId"), viewer)
	if err != nil {
		return models.RespondWithError(c, statusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess.View())
}

// CloseSession closes the viewer's session for this post.
func (s *Server) CloseSession(c *fiber.Ctx) error {
	viewer := middleware.Viewer(c)
	if !s.manager.Close(viewer.ID, c.Params("postId")) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("session", c.Params("postId")))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetView returns the current projection, opening a session on first read.
func (s *Server) GetView(c *fiber.Ctx) error {
	viewer := middleware.Viewer(c)
	sess, err := s.manager.Open(c.UserContext(), c.Params("postId"), viewer)
	if err != nil {
		return models.RespondWithError(c, statusFor(err), err)
	}
	return respondView(c, sess)
}

// SubmitComment dispatches an optimistic comment create.
func (s *Server) SubmitComment(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := sess.SubmitComment(c.UserContext(), req.Content); err != nil {
		// The view still carries the flagged provisional entry, so return
		// it alongside the error status.
		c.Status(statusFor(err))
		return respondView(c, sess)
	}
	return c.Status(fiber.StatusCreated).JSON(sess.View())
}

// EditComment dispatches a confirmed-only comment edit.
func (s *Server) EditComment(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := sess.EditComment(c.UserContext(), c.Params("commentId"), req.Content); err != nil {
		c.Status(statusFor(err))
	}
	return respondView(c, sess)
}

// DeleteComment dispatches a confirmed-only comment delete.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	if err := sess.DeleteComment(c.UserContext(), c.Params("commentId")); err != nil {
		c.Status(statusFor(err))
	}
	return respondView(c, sess)
}

// ToggleCommentLike dispatches an optimistic like toggle.
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	if err := sess.ToggleCommentLike(c.UserContext(), c.Params("commentId")); err != nil {
		c.Status(statusFor(err))
	}
	return respondView(c, sess)
}

// SubmitReply dispatches an optimistic reply create.
func (s *Server) SubmitReply(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := sess.SubmitReply(c.UserContext(), c.Params("commentId"), req.Content); err != nil {
		c.Status(statusFor(err))
		return respondView(c, sess)
	}
	return c.Status(fiber.StatusCreated).JSON(sess.View())
}

// EditReply dispatches a confirmed-only reply edit.
func (s *Server) EditReply(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := sess.EditReply(c.UserContext(), c.Params("commentId"), c.Params("replyId"), req.Content); err != nil {
		c.Status(statusFor(err))
	}
	return respondView(c, sess)
}

// DeleteReply dispatches a confirmed-only reply delete.
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	if err := sess.DeleteReply(c.UserContext(), c.Params("commentId"), c.Params("replyId")); err != nil {
		c.Status(statusFor(err))
	}
	return respondView(c, sess)
}

// ToggleReplyLike dispatches an optimistic reply like toggle.
func (s *Server) ToggleReplyLike(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	if err := sess.ToggleReplyLike(c.UserContext(), c.Params("commentId"), c.Params("replyId")); err != nil {
		c.Status(statusFor(err))
	}
	return respondView(c, sess)
}

// NextCommentPage advances the comment window.
func (s *Server) NextCommentPage(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	sess.LoadMoreComments()
	return respondView(c, sess)
}

// PrevCommentPage walks the comment window back.
func (s *Server) PrevCommentPage(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	sess.PreviousComments()
	return respondView(c, sess)
}

// SetSort switches the comment ordering.
func (s *Server) SetSort(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	var req sortRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := sess.SetSort(sorting.Key(req.Key)); err != nil {
		return models.RespondWithError(c, statusFor(err), err)
	}
	return respondView(c, sess)
}

// ToggleReplies expands or collapses one comment's reply list.
func (s *Server) ToggleReplies(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	sess.ToggleReplies(c.Params("commentId"))
	return respondView(c, sess)
}

// NextReplyPage advances an expanded reply window.
func (s *Server) NextReplyPage(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	sess.LoadMoreReplies(c.Params("commentId"))
	return respondView(c, sess)
}

// GetLikers returns summaries for users who liked the post.
func (s *Server) GetLikers(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	likers, err := s.upstream.FetchLikers(c.UserContext(), c.Params("postId"), limit)
	if err != nil {
		return models.RespondWithError(c, statusFor(err), err)
	}
	return c.JSON(fiber.Map{"likers": likers})
}

// ClearError empties the session's transient error channel.
func (s *Server) ClearError(c *fiber.Ctx) error {
	sess := s.session(c)
	if sess == nil {
		return nil
	}
	sess.ClearError()
	return c.SendStatus(fiber.StatusNoContent)
}
