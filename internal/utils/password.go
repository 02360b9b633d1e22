package utils

import (
    "errors"

    "golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the identity layer accepts.
const MinPasswordLength = 6

// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
var ErrWeakPassword = errors.New("password must be at least 6 characters")

// ValidatePassword checks the length rule shared by registration and
// password updates.
func ValidatePassword(plain string) error {
    if len(plain) < MinPasswordLength {
        return ErrWeakPassword
    }
    return nil
}

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
    if cost < bcrypt.MinCost {
        cost = bcrypt.DefaultCost
    }
    b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
