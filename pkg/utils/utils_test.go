package utils

import (
	"testing"
	"time"
)

func TestJWT(t *testing.T) {
	secret := "supersecret"
	userID := "landlord-123"
	role := "landlord"

	token, err := GenerateToken(userID, role, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, claims.UserID)
	}

	if claims.Role != role {
		t.Errorf("Expected Role %s, got %s", role, claims.Role)
	}

	_, err = ValidateToken(token, "wrongsecret")
	if err == nil {
		t.Errorf("Expected error with wrong secret")
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateTokenWithTTL("tenant-1", "tenant", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Errorf("Expected expired token to be rejected")
	}
}

func TestPeekClaims(t *testing.T) {
	token, err := GenerateToken("tenant-1", "tenant", "secret")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claims, err := PeekClaims(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if claims.UserID != "tenant-1" || claims.Role != "tenant" {
		t.Errorf("Unexpected claims %+v", claims)
	}

	if _, err := PeekClaims("not-a-token"); err == nil {
		t.Errorf("Expected error for malformed token")
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	if _, err := GenerateToken("tenant-1", "tenant", ""); err == nil {
		t.Errorf("Expected error for empty secret")
	}
}
