package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/recipebook/internal/models"
)

// HashPassword returns the bcrypt hash stored as the user's credential.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares password with a stored hash. A mismatch is reported
// as models.ErrInvalidCredentials.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.ErrInvalidCredentials
	}

	return err
}
