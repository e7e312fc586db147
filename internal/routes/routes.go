package routes

import (
	"github.com/fathima-sithara/account-service/internal/handlers"
	"github.com/gofiber/fiber/v2"
)

// Setup registers the versioned user routes.
func Setup(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")
	user := api.Group("/user")

	user.Post("/register", h.Register)
	user.Post("/verify-otp", h.VerifyOTP)
	user.Post("/login", h.Login)
	user.Get("/logout", h.RequireAuth, h.Logout)
	user.Get("/me", h.RequireAuth, h.Me)
	user.Post("/password/forgotpassword", h.ForgotPassword)
	user.Put("/password/reset/:token", h.ResetPassword)
}
