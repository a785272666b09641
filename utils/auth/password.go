package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch = errors.New("password does not match")
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12
	// MinPasswordLength is the minimum password length
	MinPasswordLength = 8

	// AlgoBcrypt is the primary password algorithm
	AlgoBcrypt = "bcrypt"
	// AlgoLegacySHA256 is the pre-migration algorithm, kept only so old
	// accounts can log in once and be re-hashed.
	AlgoLegacySHA256 = "sha256"
)

// HashPassword generates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// VerifyPassword checks the password against the stored hash. It tries the
// primary algorithm first; when the stored value does not parse as bcrypt it
// falls back to the legacy unsalted SHA-256 digest. The second return value
// reports whether the hash must be upgraded to bcrypt on this login.
func VerifyPassword(hashedPassword, password string) (needsRehash bool, err error) {
	if isBcryptHash(hashedPassword) {
		err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
		if err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return false, ErrPasswordMismatch
			}
			return false, err
		}
		return false, nil
	}

	// Legacy path: hex-encoded SHA-256 of the raw password.
	if verifyLegacySHA256(hashedPassword, password) {
		return true, nil
	}
	return false, ErrPasswordMismatch
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyLegacySHA256(storedHex, password string) bool {
	stored, err := hex.DecodeString(storedHex)
	if err != nil || len(stored) != sha256.Size {
		return false
	}
	sum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(stored, sum[:]) == 1
}

// IsPasswordValid checks if password meets minimum requirements
func IsPasswordValid(password string) bool {
	return len(password) >= MinPasswordLength
}
