package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

func TestTokenService_IssueAndParse(t *testing.T) {
	svc := NewTokenService("secret", "crm", 0)

	token, exp, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if d := time.Until(exp); d < DefaultTokenTTL-time.Minute || d > DefaultTokenTTL {
		t.Fatalf("unexpected expiry distance: %v", d)
	}

	sub, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected subject user-1, got %q", sub)
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewTokenService("secret", "", time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.Parse(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected underlying expiry error, got %v", err)
	}
}

func TestTokenService_RejectsTampering(t *testing.T) {
	svc := NewTokenService("secret", "crm", time.Hour)
	other := NewTokenService("other-secret", "crm", time.Hour)
	foreign, _, _ := other.Issue("user-1")

	wrongIssuer, _, _ := NewTokenService("secret", "someone-else", time.Hour).Issue("user-1")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1", Issuer: "crm"}).SignedString([]byte("secret"))
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "crm",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"foreign key":  foreign,
		"wrong issuer": wrongIssuer,
		"alg none":     unsigned,
		"no expiry":    noExp,
		"no subject":   noSub,
	} {
		if _, err := svc.Parse(tok); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestTokenService_TokensAreUnique(t *testing.T) {
	svc := NewTokenService("secret", "", time.Hour)
	a, _, _ := svc.Issue("user-1")
	b, _, _ := svc.Issue("user-1")
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
}
