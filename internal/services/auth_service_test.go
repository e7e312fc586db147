package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/account-service/internal/models"
	"github.com/fathima-sithara/account-service/internal/notify"
	"github.com/fathima-sithara/account-service/internal/repository"
	"github.com/fathima-sithara/account-service/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memoryUserRepo is an in-memory stand-in for the Mongo repository, safe for
// concurrent use like the real one.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryUserRepo) FindVerifiedByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.AccountVerified && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryUserRepo) FindVerifiedByEmailOrPhone(_ context.Context, email, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.AccountVerified && (u.Email == email || u.Phone == phone) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryUserRepo) FindUnverifiedByEmailOrPhone(_ context.Context, email, phone string) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if !u.AccountVerified && (u.Email == email || u.Phone == phone) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryUserRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetPasswordToken == tokenHash && u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryUserRepo) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryUserRepo) DeleteByIDs(_ context.Context, ids []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.users, id)
	}
	return nil
}

func (r *memoryUserRepo) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.users {
		if !u.AccountVerified && u.CreatedAt.Before(cutoff) {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryUserRepo) all() []*models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	return out
}

type fakeMail struct {
	mu    sync.Mutex
	sent  []string // html bodies
	err error
}

func (f *fakeMail) SendEmail(_ context.Context, _, _, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, html)
	return nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, _, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

type fixture struct {
	repo   *memoryUserRepo
	mail   *fakeMail
	sms    *fakeSMS
	tokens *token.Manager
	svc    AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryUserRepo()
	mail := &fakeMail{}
	sms := &fakeSMS{}
	logger := zap.NewNop().Sugar()
	gw := notify.NewGateway(mail, sms, logger)
	tokens := token.NewManager("test-secret", 7*24*time.Hour)
	svc := NewAuthService(repo, gw, tokens, "https://front.example", 5*time.Minute, 15*time.Minute, 3, logger)
	return &fixture{repo: repo, mail: mail, sms: sms, tokens: tokens, svc: svc}
}

func validInput() RegisterInput {
	return RegisterInput{
		Name:     "Ada",
		Email:    "a@x.com",
		Phone:    "2025550123",
		Password: "Secret1",
		Method:   notify.MethodEmail,
	}
}

func (f *fixture) register(t *testing.T, in RegisterInput) *models.User {
	t.Helper()
	_, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	users, err := f.repo.FindUnverifiedByEmailOrPhone(context.Background(), in.Email, "+1"+in.Phone)
	require.NoError(t, err)
	require.NotEmpty(t, users)
	return users[0]
}

func TestRegister_HappyPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.SentTo)

	users := f.repo.all()
	require.Len(t, users, 1)
	u := users[0]
	assert.False(t, u.AccountVerified)
	assert.Equal(t, "+12025550123", u.Phone)
	assert.NotEqual(t, "Secret1", u.PasswordHash)
	assert.True(t, u.ComparePassword("Secret1"))
	require.NotNil(t, u.VerificationCode)
	assert.GreaterOrEqual(t, *u.VerificationCode, 100000)
	assert.LessOrEqual(t, *u.VerificationCode, 999999)
	require.NotNil(t, u.VerificationCodeExpires)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *u.VerificationCodeExpires, 5*time.Second)
	assert.Len(t, f.mail.sent, 1)
}

func TestRegister_SMSMethod(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := validInput()
	in.Method = notify.MethodPhone
	res, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "+12025550123", res.SentTo)
	assert.Len(t, f.sms.sent, 1)
	assert.Empty(t, f.mail.sent)
}

func TestRegister_InvalidPhone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := validInput()
	in.Phone = "12345"
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Empty(t, f.repo.all())
}

func TestRegister_InvalidMethod(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := validInput()
	in.Method = notify.Method("carrier-pigeon")
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestRegister_ConflictWithVerifiedAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, validInput())
	_, _, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(*u.VerificationCode))
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrAccountExists)

	// Same phone with a different email conflicts too.
	in := validInput()
	in.Email = "b@x.com"
	_, err = f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestRegister_AttemptCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Register(context.Background(), validInput())
		require.NoError(t, err)
	}
	_, err := f.svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Len(t, f.repo.all(), 3)
}

func TestRegister_DeliveryFailureKeepsRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mail.err = errors.New("provider down")

	_, err := f.svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	// Record stays persisted, retryable within the attempt cap.
	assert.Len(t, f.repo.all(), 1)
}

func TestVerifyOTP_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _, err := f.svc.VerifyOTP(context.Background(), "nobody@x.com", "2025550123", "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestVerifyOTP_WrongCodeDoesNotMutate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, validInput())
	wrong := *u.VerificationCode + 1
	if wrong > 999999 {
		wrong = 100000
	}

	_, _, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(wrong))
	assert.ErrorIs(t, err, ErrInvalidCode)

	got, err := f.repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.AccountVerified)
	require.NotNil(t, got.VerificationCode)
	assert.Equal(t, *u.VerificationCode, *got.VerificationCode)
}

func TestVerifyOTP_NonNumericCode(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, validInput())
	_, _, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, "abcdef")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyOTP_Expired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, validInput())
	past := time.Now().Add(-time.Minute)
	u.VerificationCodeExpires = &past
	require.NoError(t, f.repo.Update(context.Background(), u))

	_, _, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(*u.VerificationCode))
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestVerifyOTP_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, validInput())
	user, tok, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(*u.VerificationCode))
	require.NoError(t, err)
	assert.True(t, user.AccountVerified)
	assert.Nil(t, user.VerificationCode)
	assert.Nil(t, user.VerificationCodeExpires)

	id, err := f.tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), id)

	// Consuming the code a second time fails: no unverified record remains.
	_, _, err = f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(123456))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestVerifyOTP_CompactsDuplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Register(context.Background(), validInput())
		require.NoError(t, err)
	}
	entries, err := f.repo.FindUnverifiedByEmailOrPhone(context.Background(), "a@x.com", "+12025550123")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Backdate the older records so newest-first ordering is unambiguous.
	for i, e := range entries[1:] {
		e.CreatedAt = e.CreatedAt.Add(-time.Duration(i+1) * time.Minute)
		require.NoError(t, f.repo.Update(context.Background(), e))
	}
	newest := entries[0]

	user, _, err := f.svc.VerifyOTP(context.Background(), "a@x.com", "2025550123", strconv.Itoa(*newest.VerificationCode))
	require.NoError(t, err)

	remaining := f.repo.all()
	require.Len(t, remaining, 1)
	assert.Equal(t, user.ID, remaining[0].ID)
	assert.True(t, remaining[0].AccountVerified)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, validInput())
	_, _, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(*u.VerificationCode))
	require.NoError(t, err)

	user, tok, err := f.svc.Login(context.Background(), "a@x.com", "Secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, "a@x.com", user.Email)

	_, _, err = f.svc.Login(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Login(context.Background(), "missing@x.com", "Secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnverifiedAccountRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.register(t, validInput())
	_, _, err := f.svc.Login(context.Background(), "a@x.com", "Secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func verifiedUser(t *testing.T, f *fixture) *models.User {
	t.Helper()
	u := f.register(t, validInput())
	user, _, err := f.svc.VerifyOTP(context.Background(), u.Email, u.Phone, strconv.Itoa(*u.VerificationCode))
	require.NoError(t, err)
	return user
}

func TestForgotPassword_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.ForgotPassword(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestForgotPassword_StoresHashNotSecret(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)

	sentTo, err := f.svc.ForgotPassword(context.Background(), user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.Email, sentTo)

	stored, err := f.repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ResetPasswordToken)
	require.NotNil(t, stored.ResetPasswordExpire)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *stored.ResetPasswordExpire, 5*time.Second)

	// The mail embeds the plaintext secret; the store holds only its hash.
	require.Len(t, f.mail.sent, 2) // verification mail + reset mail
	assert.NotContains(t, f.mail.sent[1], stored.ResetPasswordToken)
}

func TestForgotPassword_DeliveryFailureClearsToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)
	f.mail.err = errors.New("provider down")

	_, err := f.svc.ForgotPassword(context.Background(), user.Email)
	assert.ErrorIs(t, err, ErrEmailSendFailed)

	stored, err := f.repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordToken)
	assert.Nil(t, stored.ResetPasswordExpire)
}

// resetSecret extracts the plaintext secret from the last reset mail.
func resetSecret(t *testing.T, f *fixture) string {
	t.Helper()
	require.NotEmpty(t, f.mail.sent)
	html := f.mail.sent[len(f.mail.sent)-1]
	idx := strings.LastIndex(html, "/resetpassword/")
	require.GreaterOrEqual(t, idx, 0)
	rest := html[idx+len("/resetpassword/"):]
	end := strings.IndexAny(rest, "\"<")
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}

func TestResetPassword_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)

	_, err := f.svc.ForgotPassword(context.Background(), user.Email)
	require.NoError(t, err)
	secret := resetSecret(t, f)

	got, tok, err := f.svc.ResetPassword(context.Background(), secret, "NewSecret2", "NewSecret2")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Empty(t, got.ResetPasswordToken)
	assert.Nil(t, got.ResetPasswordExpire)

	_, _, err = f.svc.Login(context.Background(), user.Email, "NewSecret2")
	require.NoError(t, err)
	_, _, err = f.svc.Login(context.Background(), user.Email, "Secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPassword_SingleUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)

	_, err := f.svc.ForgotPassword(context.Background(), user.Email)
	require.NoError(t, err)
	secret := resetSecret(t, f)

	_, _, err = f.svc.ResetPassword(context.Background(), secret, "NewSecret2", "NewSecret2")
	require.NoError(t, err)

	_, _, err = f.svc.ResetPassword(context.Background(), secret, "Another3", "Another3")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_Expired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)

	_, err := f.svc.ForgotPassword(context.Background(), user.Email)
	require.NoError(t, err)
	secret := resetSecret(t, f)

	stored, err := f.repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	stored.ResetPasswordExpire = &past
	require.NoError(t, f.repo.Update(context.Background(), stored))

	_, _, err = f.svc.ResetPassword(context.Background(), secret, "NewSecret2", "NewSecret2")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_ConfirmationMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)

	_, err := f.svc.ForgotPassword(context.Background(), user.Email)
	require.NoError(t, err)
	secret := resetSecret(t, f)

	_, _, err = f.svc.ResetPassword(context.Background(), secret, "NewSecret2", "Different9")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	// Mismatch must not consume the token.
	_, _, err = f.svc.ResetPassword(context.Background(), secret, "NewSecret2", "NewSecret2")
	require.NoError(t, err)
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := verifiedUser(t, f)

	got, err := f.svc.GetUser(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = f.svc.GetUser(context.Background(), "not-an-object-id")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.GetUser(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
