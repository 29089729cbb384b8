package auth

import (
	"errors"
	"fmt"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted on registration
const MinPasswordLength = 8

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w - password must have at least %d characters", biddingerrors.ErrInvalidUser, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w - password too long", biddingerrors.ErrInvalidUser)
		}
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
