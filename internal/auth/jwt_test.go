package auth

import (
	"errors"
	"testing"
	"time"

	"heliactyl/config"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Minute, Issuer: "heliactyl"}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 12, "a@example.com", "ADMIN")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAccessToken(cfg, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 12 || claims.Role != "ADMIN" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, _ := GenerateAccessToken(testJWTConfig(), 1, "", "USER")
	other := testJWTConfig()
	other.AccessSecret = "other"
	if _, err := ParseAccessToken(other, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessExpiry = -time.Minute
	tok, _ := GenerateAccessToken(cfg, 1, "", "USER")
	if _, err := ParseAccessToken(cfg, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseReportsExpiry(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessExpiry = -time.Minute
	tok, _ := GenerateAccessToken(cfg, 1, "", "USER")
	if _, err := ParseAccessToken(cfg, tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseChecksIssuer(t *testing.T) {
	tok, _ := GenerateAccessToken(testJWTConfig(), 5, "", "USER")
	other := testJWTConfig()
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
	claims, err := ParseAccessToken(testJWTConfig(), tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "5" || claims.IsAdmin() {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestGenerateRejectsUnknownRole(t *testing.T) {
	if _, err := GenerateAccessToken(testJWTConfig(), 1, "", "ROOT"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
