package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fathima-sithara/account-service/internal/models"
	"github.com/fathima-sithara/account-service/internal/notify"
	"github.com/fathima-sithara/account-service/internal/repository"
	"github.com/fathima-sithara/account-service/internal/token"
	"github.com/fathima-sithara/account-service/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type authService struct {
	userRepo    repository.UserRepository
	gateway     *notify.Gateway
	tokens      *token.Manager
	frontendURL string
	otpTTL      time.Duration
	resetTTL    time.Duration
	maxAttempts int
	logger      *zap.SugaredLogger
}

// NewAuthService wires the verification and reset lifecycles over the
// credential store, notification gateway and token issuer.
func NewAuthService(
	userRepo repository.UserRepository,
	gateway *notify.Gateway,
	tokens *token.Manager,
	frontendURL string,
	otpTTL time.Duration,
	resetTTL time.Duration,
	maxAttempts int,
	logger *zap.SugaredLogger,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		gateway:     gateway,
		tokens:      tokens,
		frontendURL: frontendURL,
		otpTTL:      otpTTL,
		resetTTL:    resetTTL,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Register creates an unverified account and dispatches a one-time code.
// A delivery failure leaves the record persisted so the user can re-register
// within the attempt cap.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if !in.Method.Valid() {
		return nil, ErrInvalidMethod
	}

	phone, err := utils.NormalizePhoneE164(in.Phone)
	if err != nil {
		return nil, ErrInvalidPhone
	}

	existing, err := s.userRepo.FindVerifiedByEmailOrPhone(ctx, in.Email, phone)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", ErrInternal)
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	pending, err := s.userRepo.FindUnverifiedByEmailOrPhone(ctx, in.Email, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to count unverified attempts: %w", ErrInternal)
	}
	if len(pending) >= s.maxAttempts {
		return nil, ErrTooManyAttempts
	}

	user := &models.User{
		Name:  in.Name,
		Email: in.Email,
		Phone: phone,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", ErrInternal)
	}
	user.SetVerificationCode(utils.GenerateOTP(), s.otpTTL)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", ErrInternal)
	}

	ttlMinutes := int(s.otpTTL / time.Minute)
	if err := s.gateway.SendVerificationCode(ctx, in.Method, user.Email, user.Phone, *user.VerificationCode, ttlMinutes); err != nil {
		s.logger.Errorw("verification code dispatch failed", "method", in.Method, "error", err)
		return nil, ErrDeliveryFailed
	}

	sentTo := user.Email
	if in.Method == notify.MethodPhone {
		sentTo = user.Phone
	}
	return &RegisterResult{SentTo: sentTo, Method: in.Method}, nil
}

// VerifyOTP promotes the newest unverified record to verified, discarding
// older duplicates, and issues a session token.
func (s *authService) VerifyOTP(ctx context.Context, email, phone, code string) (*models.User, string, error) {
	if phone != "" {
		p, err := utils.NormalizePhoneE164(phone)
		if err != nil {
			return nil, "", ErrInvalidPhone
		}
		phone = p
	}

	entries, err := s.userRepo.FindUnverifiedByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up unverified accounts: %w", ErrInternal)
	}
	if len(entries) == 0 {
		return nil, "", ErrUserNotFound
	}

	user := entries[0]

	// Compact duplicates left by repeated registrations before verifying.
	if len(entries) > 1 {
		stale := make([]primitive.ObjectID, 0, len(entries)-1)
		for _, e := range entries[1:] {
			stale = append(stale, e.ID)
		}
		if err := s.userRepo.DeleteByIDs(ctx, stale); err != nil {
			return nil, "", fmt.Errorf("failed to remove duplicate accounts: %w", ErrInternal)
		}
	}

	supplied, err := strconv.Atoi(code)
	if err != nil || user.VerificationCode == nil || *user.VerificationCode != supplied {
		return nil, "", ErrInvalidCode
	}
	if user.VerificationCodeExpires == nil || time.Now().After(*user.VerificationCodeExpires) {
		return nil, "", ErrCodeExpired
	}

	user.AccountVerified = true
	user.ClearVerificationCode()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to mark account verified: %w", ErrInternal)
	}

	tok, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", ErrInternal)
	}
	return user, tok, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userRepo.FindVerifiedByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up user: %w", ErrInternal)
	}
	if !user.ComparePassword(password) {
		return nil, "", ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", ErrInternal)
	}
	return user, tok, nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", ErrInternal)
	}
	return user, nil
}

// ForgotPassword stores a hashed one-time reset token and mails the plaintext
// link. On delivery failure the token fields are cleared so a retried request
// starts clean.
func (s *authService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.userRepo.FindVerifiedByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to look up user: %w", ErrInternal)
	}

	secret, err := user.GenerateResetToken(s.resetTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", ErrInternal)
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", ErrInternal)
	}

	resetURL := fmt.Sprintf("%s/resetpassword/%s", s.frontendURL, secret)
	if err := s.gateway.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		s.logger.Errorw("password reset dispatch failed", "error", err)
		user.ClearResetToken()
		if uerr := s.userRepo.Update(ctx, user); uerr != nil {
			s.logger.Errorw("failed to clear reset token after delivery failure", "error", uerr)
		}
		return "", ErrEmailSendFailed
	}
	return user.Email, nil
}

// ResetPassword consumes a reset token exactly once and issues a session
// token for the freshly re-credentialed account.
func (s *authService) ResetPassword(ctx context.Context, secret, password, confirmPassword string) (*models.User, string, error) {
	hashed := models.HashResetToken(secret)
	user, err := s.userRepo.FindByResetToken(ctx, hashed, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Debugw("no user for reset token", "tokenHash", hashed)
			return nil, "", ErrInvalidResetToken
		}
		return nil, "", fmt.Errorf("failed to look up reset token: %w", ErrInternal)
	}

	if password != confirmPassword {
		return nil, "", ErrPasswordMismatch
	}

	if err := user.SetPassword(password); err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", ErrInternal)
	}
	user.ClearResetToken()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to store new password: %w", ErrInternal)
	}

	tok, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", ErrInternal)
	}
	return user, tok, nil
}
