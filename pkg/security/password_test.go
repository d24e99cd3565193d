package security_test

import (
	"strings"
	"testing"

	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", testPasswordConfig())
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=32768,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := security.HashPassword("", testPasswordConfig()); err == nil {
		t.Fatal("expected empty password error")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2id$v=19$m=abc,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$t=1,p=1$c2FsdA$aGFzaA",
	} {
		if _, err := security.VerifyPassword("irrelevant", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}
