package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !VerifyPassword(hash, "correct horse") {
		t.Error("valid password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("not-a-hash", "correct horse") {
		t.Error("garbage hash accepted")
	}
}

func TestAdminAuth_LoginAndParse(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	auth := NewAdminAuth(AdminConfig{Username: "ops", PasswordHash: hash, JWTSecret: "key", TokenTTL: time.Hour}, zap.NewNop())

	if _, _, err := auth.Login("ops", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password: %v", err)
	}
	if _, _, err := auth.Login("other", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad username: %v", err)
	}

	token, exp, err := auth.Login("ops", "s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry in the past: %v", exp)
	}

	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.Username != "ops" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	other := NewAdminAuth(AdminConfig{Username: "ops", PasswordHash: hash, JWTSecret: "different"}, zap.NewNop())
	if _, err := other.ParseToken(token); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestAdminAuth_Disabled(t *testing.T) {
	auth := NewAdminAuth(AdminConfig{}, zap.NewNop())
	if auth.Enabled() {
		t.Fatal("empty config should be disabled")
	}
	if _, _, err := auth.Login("", ""); !errors.Is(err, ErrAdminDisabled) {
		t.Errorf("Login = %v, want ErrAdminDisabled", err)
	}
}
