package utils

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a submitted secret against the stored value. Rows
// written by this server hold bcrypt hashes; rows inherited from earlier
// deployments hold the secret verbatim, so those are compared directly after
// trimming surrounding whitespace on both sides.
func CheckPassword(submitted, stored string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(strings.TrimSpace(submitted))) == nil
	}

	a := []byte(strings.TrimSpace(submitted))
	b := []byte(strings.TrimSpace(stored))
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") ||
		strings.HasPrefix(value, "$2b$") ||
		strings.HasPrefix(value, "$2y$")
}
