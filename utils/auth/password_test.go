package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatal(err)
	}

	needsRehash, err := VerifyPassword(hash, "correct-horse-battery")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if needsRehash {
		t.Fatal("fresh bcrypt hash must not ask for a rehash")
	}

	if _, err := VerifyPassword(hash, "wrong-password"); err != ErrPasswordMismatch {
		t.Fatalf("wrong password error = %v, want ErrPasswordMismatch", err)
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrPasswordTooShort {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestVerifyPasswordLegacySHA256AsksForRehash(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy-password"))
	stored := hex.EncodeToString(sum[:])

	needsRehash, err := VerifyPassword(stored, "legacy-password")
	if err != nil {
		t.Fatalf("legacy verify failed: %v", err)
	}
	if !needsRehash {
		t.Fatal("legacy hash must be flagged for rehash")
	}

	if _, err := VerifyPassword(stored, "other-password"); err != ErrPasswordMismatch {
		t.Fatalf("legacy wrong password error = %v", err)
	}
}

func TestVerifyPasswordGarbageHash(t *testing.T) {
	if _, err := VerifyPassword("not-a-hash", "whatever-password"); err != ErrPasswordMismatch {
		t.Fatalf("garbage hash error = %v, want ErrPasswordMismatch", err)
	}
}
