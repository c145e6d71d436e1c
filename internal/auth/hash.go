package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashRefreshToken returns a salted hash of a refresh token for storage.
// bcrypt only reads 72 bytes, so the token is pre-hashed with SHA-256.
func HashRefreshToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(digest(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash refresh token: %w", err)
	}
	return string(hash), nil
}

// VerifyRefreshToken reports whether token matches a stored hash.
func VerifyRefreshToken(token, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(token)) == nil
}

func digest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(hex.EncodeToString(sum[:]))
}
