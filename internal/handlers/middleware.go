package handlers

import (
	"errors"

	"github.com/fathima-sithara/account-service/internal/token"
	"github.com/gofiber/fiber/v2"
)

const localUser = "user"

// RequireAuth guards cookie-protected routes: it verifies the session token
// from the cookie, loads the user and stores it in request locals.
func (h *Handler) RequireAuth(c *fiber.Ctx) error {
	tok := c.Cookies(sessionCookie)
	if tok == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "please login to access this resource",
		})
	}

	userID, err := h.tokens.Verify(tok)
	if err != nil {
		msg := "session token is invalid, try again"
		if errors.Is(err, token.ErrTokenExpired) {
			msg = "session token is expired, try again"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	user, err := h.svc.GetUser(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	c.Locals(localUser, user)
	return c.Next()
}
