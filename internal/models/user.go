package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// User is the sole persisted entity. The password hash and the
// verification/reset secrets are never serialized in responses.
type User struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                    string             `bson:"name" json:"name"`
	Email                   string             `bson:"email" json:"email"`
	Phone                   string             `bson:"phone" json:"phone"` // E.164
	PasswordHash            string             `bson:"password" json:"-"`
	AccountVerified         bool               `bson:"accountverified" json:"accountVerified"`
	VerificationCode        *int               `bson:"verificationCode,omitempty" json:"-"`
	VerificationCodeExpires *time.Time         `bson:"verificationCodeExpires,omitempty" json:"-"`
	ResetPasswordToken      string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpire     *time.Time         `bson:"resetPasswordExpire,omitempty" json:"-"`
	CreatedAt               time.Time          `bson:"createdAt" json:"createdAt"`
}

// SetPassword stores a bcrypt hash of the plaintext password.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// ComparePassword reports whether plain matches the stored hash.
func (u *User) ComparePassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// SetVerificationCode stamps the OTP and its expiry on the record.
func (u *User) SetVerificationCode(code int, ttl time.Duration) {
	exp := time.Now().Add(ttl)
	u.VerificationCode = &code
	u.VerificationCodeExpires = &exp
}

// ClearVerificationCode removes a consumed OTP.
func (u *User) ClearVerificationCode() {
	u.VerificationCode = nil
	u.VerificationCodeExpires = nil
}

// GenerateResetToken creates a 160-bit reset secret, stores only its SHA-256
// hex digest plus the expiry, and returns the plaintext for the outgoing mail.
func (u *User) GenerateResetToken(ttl time.Duration) (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(raw)
	u.ResetPasswordToken = HashResetToken(secret)
	exp := time.Now().Add(ttl)
	u.ResetPasswordExpire = &exp
	return secret, nil
}

// ClearResetToken removes a consumed or abandoned reset token.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpire = nil
}

// HashResetToken maps a plaintext reset secret to its stored form.
func HashResetToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
