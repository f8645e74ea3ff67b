// Package auth tests cover password hashing behavior.
package auth

import (
	"strings"
	"testing"
)

// TestHashVerifyRoundTrip hashes then verifies a password.
func TestHashVerifyRoundTrip(t *testing.T) {
	h, err := HashPassword("correct horse", DefaultArgon2Params())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(h, "argon2id$") {
		t.Fatalf("unexpected hash format: %s", h)
	}
	ok, err := VerifyPassword("correct horse", h)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
	ok, err = VerifyPassword("wrong horse", h)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

// TestVerifyRejectsMangledHash fails cleanly on a corrupted PHC string.
func TestVerifyRejectsMangledHash(t *testing.T) {
	h, err := HashPassword("pw", DefaultArgon2Params())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := VerifyPassword("pw", strings.Replace(h, "argon2id", "argon2x", 1)); err == nil {
		t.Fatalf("expected parse error")
	}
}

// TestVerifyEmptyInputs never matches empty passwords or hashes.
func TestVerifyEmptyInputs(t *testing.T) {
	if ok, _ := VerifyPassword("", "whatever"); ok {
		t.Fatalf("empty password must not match")
	}
	if ok, _ := VerifyPassword("pw", ""); ok {
		t.Fatalf("empty hash must not match")
	}
}
