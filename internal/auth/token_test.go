package auth

import (
	"testing"
	"time"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 10)

	token, expiresAt, err := tm.GenerateToken("u1", "mod1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("token should expire in the future")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "u1" || claims.RequestedBy != "mod1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 10).GenerateToken("u1", "mod1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := NewTokenManager("secret-b", 10).ParseToken(token); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	if _, err := tm.ParseToken("not.a.token"); err == nil {
		t.Fatalf("garbage token must be rejected")
	}
}
