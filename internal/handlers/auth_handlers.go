package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fathima-sithara/account-service/internal/models"
	"github.com/fathima-sithara/account-service/internal/notify"
	"github.com/fathima-sithara/account-service/internal/services"
	"github.com/fathima-sithara/account-service/internal/token"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const sessionCookie = "token"

type Handler struct {
	svc          services.AuthService
	tokens       *token.Manager
	validate     *validator.Validate
	secureCookie bool
	logger       *zap.Logger
}

func NewHandler(svc services.AuthService, tokens *token.Manager, secureCookie bool, logger *zap.Logger) *Handler {
	return &Handler{
		svc:          svc,
		tokens:       tokens,
		validate:     validator.New(),
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// statusForError maps lifecycle failures onto HTTP statuses. Anything not
// classified is a client error; only not-found and infrastructure failures
// get their own classes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrDeliveryFailed),
		errors.Is(err, services.ErrEmailSendFailed),
		errors.Is(err, services.ErrInternal):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "message": err.Error()})
}

func (h *Handler) validationFail(c *fiber.Ctx, err error) error {
	msg := "all fields are required"
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 && ve[0].Tag() != "required" {
		msg = fmt.Sprintf("%s is invalid", ve[0].Field())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": msg})
}

// sendToken mirrors the session issuance contract: the signed token travels
// both as an HTTP-only cookie and in the JSON body.
func (h *Handler) sendToken(c *fiber.Ctx, status int, message, tok string, user *models.User) error {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    tok,
		Expires:  time.Now().Add(h.tokens.TTL()),
		HTTPOnly: true,
		Secure:   h.secureCookie,
	})
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"token":   tok,
		"user":    user,
	})
}

type registerReq struct {
	Name               string `json:"name" validate:"required"`
	Email              string `json:"email" validate:"required,email"`
	Phone              string `json:"phone" validate:"required"`
	Password           string `json:"password" validate:"required"`
	VerificationMethod string `json:"verificationMethod" validate:"required,oneof=email phone"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, errors.New("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return h.validationFail(c, err)
	}

	res, err := h.svc.Register(c.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Method:   notify.Method(req.VerificationMethod),
	})
	if err != nil {
		return h.fail(c, err)
	}

	channel := "Email"
	if res.Method == notify.MethodPhone {
		channel = "SMS"
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Verification code sent to %s successfully via %s.", res.SentTo, channel),
	})
}

type verifyOTPReq struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
	// Clients send the code as either a JSON number or a string.
	VerificationCode any `json:"verificationCode"`
}

func (r *verifyOTPReq) code() string {
	switch v := r.VerificationCode.(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, errors.New("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return h.validationFail(c, err)
	}
	code := req.code()
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "all fields are required"})
	}

	user, tok, err := h.svc.VerifyOTP(c.Context(), req.Email, req.Phone, code)
	if err != nil {
		return h.fail(c, err)
	}
	return h.sendToken(c, fiber.StatusOK, "User verified successfully.", tok, user)
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, errors.New("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return h.validationFail(c, err)
	}

	user, tok, err := h.svc.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return h.sendToken(c, fiber.StatusOK, "Login successful.", tok, user)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookie,
	})
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully.",
	})
}

func (h *Handler) Me(c *fiber.Ctx) error {
	user, ok := c.Locals(localUser).(*models.User)
	if !ok {
		return h.fail(c, services.ErrInternal)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, errors.New("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return h.validationFail(c, err)
	}

	sentTo, err := h.svc.ForgotPassword(c.Context(), req.Email)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Email sent to %s successfully.", sentTo),
	})
}

type resetPasswordReq struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	secret := c.Params("token")
	if secret == "" {
		return h.fail(c, errors.New("reset token is required"))
	}

	var req resetPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, errors.New("invalid request body"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return h.validationFail(c, err)
	}

	user, tok, err := h.svc.ResetPassword(c.Context(), secret, req.Password, req.ConfirmPassword)
	if err != nil {
		return h.fail(c, err)
	}
	return h.sendToken(c, fiber.StatusOK, "Password reset successful.", tok, user)
}
