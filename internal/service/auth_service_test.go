package service

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/choudian/document-QA-system/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, nil, "test-secret", time.Hour)

	user := &models.User{
		TenantID: "tenant-1",
		Username: "alice",
		IsAdmin:  true,
	}
	user.ID = "user-1"

	token, err := svc.generateJWT(user)
	if err != nil {
		t.Fatalf("generateJWT: %v", err)
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want %q", claims.TenantID, "tenant-1")
	}
	if !claims.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
}

func TestParseTokenExpired(t *testing.T) {
	svc := NewAuthService(nil, nil, "test-secret", time.Hour)
	svc.tokenTTL = -time.Minute

	user := &models.User{TenantID: "tenant-1"}
	user.ID = "user-1"

	token, err := svc.generateJWT(user)
	if err != nil {
		t.Fatalf("generateJWT: %v", err)
	}
	if _, err := svc.ParseToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	issuer := NewAuthService(nil, nil, "secret-a", time.Hour)
	verifier := NewAuthService(nil, nil, "secret-b", time.Hour)

	user := &models.User{TenantID: "tenant-1"}
	user.ID = "user-1"

	token, err := issuer.generateJWT(user)
	if err != nil {
		t.Fatalf("generateJWT: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	svc := NewAuthService(nil, nil, "test-secret", time.Hour)
	if _, err := svc.ParseToken("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hashed == "s3cret-password" {
		t.Fatal("hash equals plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte("s3cret-password")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte("wrong")); err == nil {
		t.Error("wrong password verified")
	}
}
