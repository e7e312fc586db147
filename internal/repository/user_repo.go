package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/account-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository persists User records. Each operation is atomic at
// single-record granularity; no multi-record transactions are used.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindVerifiedByEmail(ctx context.Context, email string) (*models.User, error)
	FindVerifiedByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error)
	// FindUnverifiedByEmailOrPhone returns matches newest first.
	FindUnverifiedByEmailOrPhone(ctx context.Context, email, phone string) ([]*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) error
	// DeleteUnverifiedBefore removes unverified records created before cutoff
	// and reports how many were deleted.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
