package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	memberID := uuid.New()
	token, err := GenerateJWT("test-secret", memberID, "m@coop.example", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT("test-secret", token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.MemberID != memberID {
		t.Errorf("member id = %s, want %s", claims.MemberID, memberID)
	}
	if claims.Email != "m@coop.example" {
		t.Errorf("email = %s", claims.Email)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", uuid.New(), "m@coop.example", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Error("token signed with a different secret was accepted")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("wrong password accepted")
	}
}
