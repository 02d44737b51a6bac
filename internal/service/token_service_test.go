package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nutricoach-api/internal/domain"
)

func testSession(userID string, ttl time.Duration) domain.Session {
	now := time.Now().UTC()
	return domain.Session{ID: "jti-" + userID, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestTokenService_SignParse(t *testing.T) {
	svc := NewTokenService("secret")
	user := domain.User{ID: "u1", Username: "demo"}

	token, err := svc.Sign(user, testSession("u1", time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "demo" || claims.ID != "jti-u1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_RejectsEmptySecret(t *testing.T) {
	svc := NewTokenService("")
	if _, err := svc.Sign(domain.User{ID: "u1"}, testSession("u1", time.Hour)); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
	if _, err := svc.Parse("anything"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestTokenService_RejectsTamperedAndForeignTokens(t *testing.T) {
	svc := NewTokenService("secret")
	other := NewTokenService("another-secret")
	user := domain.User{ID: "u1", Username: "demo"}

	foreign, err := other.Sign(user, testSession("u1", time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Parse(foreign); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for foreign signature, got %v", err)
	}
	if _, err := svc.Parse("not-a-jwt"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for garbage, got %v", err)
	}
	if _, err := svc.Parse("   "); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for blank token, got %v", err)
	}
}

func TestTokenService_RejectsWrongIssuer(t *testing.T) {
	svc := NewTokenService("secret")
	now := time.Now().UTC()
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    "other-issuer",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.Parse(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := NewTokenService("secret")
	user := domain.User{ID: "u1", Username: "demo"}
	session := domain.Session{
		ID:        "jti-old",
		UserID:    "u1",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	token, err := svc.Sign(user, session)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Parse(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
	claims, err := svc.ParseIgnoringExpiry(token)
	if err != nil {
		t.Fatalf("parse ignoring expiry: %v", err)
	}
	if claims.ID != "jti-old" {
		t.Fatalf("expected jti-old, got %q", claims.ID)
	}
}
