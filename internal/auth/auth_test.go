package auth

import (
	"testing"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "secret", 1)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	userID, err := ValidateJWT(token, "secret")
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT(42, "secret", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateJWT(token, "other-secret"); err == nil {
		t.Error("token validated against the wrong secret")
	}
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT(42, "secret", -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Error("expired token validated")
	}
}

func TestJWTGarbage(t *testing.T) {
	if _, err := ValidateJWT("not.a.token", "secret"); err == nil {
		t.Error("garbage token validated")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correcthorse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correcthorse" {
		t.Fatal("password stored in the clear")
	}

	if !CheckPasswordHash("correcthorse", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("wrong password accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("short password accepted")
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}
}
