package auth

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"

	"nutri-planner/models"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past this many bytes.
	MaxPasswordLength = 72
)

// ValidatePassword checks the length bounds of a new password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &models.ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	if len(password) > MaxPasswordLength {
		return &models.ValidationError{Field: "password", Msg: "must be at most 72 bytes"}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// randomSecret is used as the password of accounts created through Google,
// which never sign in with a password.
func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
