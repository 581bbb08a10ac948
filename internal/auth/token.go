package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt cost factor for admin tokens
const DefaultBcryptCost = 12

// HashAdminToken hashes an admin bootstrap token for storage in config
func HashAdminToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(bytes), nil
}

// VerifyAdminToken checks a presented token against the stored hash
func VerifyAdminToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
