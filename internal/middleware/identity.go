// Package middleware provides the Fiber middleware stack: viewer identity,
// request logging, tracing, and Redis-backed rate limiting.
package middleware

import (
	"github.com/gofiber/fiber/v2"

	"pitboard/internal/models"
	"pitboard/internal/observability"
)

// Header names carrying the acting viewer's identity. The engine trusts the
// edge that terminates real authentication; these headers are its contract.
const (
	HeaderUserID     = "X-User-ID"
	HeaderUserName   = "X-User-Name"
	HeaderUserAvatar = "X-User-Avatar"
)

// Identity extracts the viewer from the identity headers into Fiber locals
// and the request context. Requests without a user id are rejected; every
// operation here acts on behalf of someone.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewValidationError("X-User-ID header is required"))
		}

		viewer := models.UserSummary{
			ID:        userID,
			Username:  c.Get(HeaderUserName),
			AvatarURL: c.Get(HeaderUserAvatar),
		}
		if viewer.Username == "" {
			viewer.Username = userID
		}

		c.Locals("viewer", viewer)
		c.SetUserContext(observability.WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

// Viewer returns the identity installed by the Identity middleware.
func Viewer(c *fiber.Ctx) models.UserSummary {
	if v, ok := c.Locals("viewer").(models.UserSummary); ok {
		return v
	}
	return models.UserSummary{}
}
