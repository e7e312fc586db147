package services

import (
	"context"
	"errors"

	"github.com/fathima-sithara/account-service/internal/models"
	"github.com/fathima-sithara/account-service/internal/notify"
)

var (
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrInvalidMethod      = errors.New("invalid verification method, choose 'email' or 'phone'")
	ErrAccountExists      = errors.New("email or phone already in use")
	ErrTooManyAttempts    = errors.New("you have exceeded the maximum number of attempts (3), please try again after an hour")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code has expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired password reset token")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrDeliveryFailed     = errors.New("failed to send verification code, try again")
	ErrEmailSendFailed    = errors.New("email could not be sent")
	ErrInternal           = errors.New("internal server error")
)

// RegisterInput carries a registration request after body parsing.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Method   notify.Method
}

// RegisterResult reports where the verification code was dispatched.
type RegisterResult struct {
	SentTo string
	Method notify.Method
}

// AuthService is the account verification and credential lifecycle.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	VerifyOTP(ctx context.Context, email, phone, code string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, secret, password, confirmPassword string) (*models.User, string, error)
}
