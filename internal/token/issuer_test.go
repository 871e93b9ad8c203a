package token

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/mind-engage/learnhub/internal/clock"
)

func newTestIssuer(t *testing.T) (*Issuer, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	iss, err := NewIssuer(Config{AccessSecret: "a-secret", RefreshSecret: "r-secret"}, clk)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss, clk
}

func TestNewIssuerRejectsSharedSecret(t *testing.T) {
	if _, err := NewIssuer(Config{AccessSecret: "x", RefreshSecret: "x"}, nil); err == nil {
		t.Fatal("expected error for identical secrets")
	}
	if _, err := NewIssuer(Config{AccessSecret: "x"}, nil); err == nil {
		t.Fatal("expected error for missing refresh secret")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	iss, _ := newTestIssuer(t)
	tok, err := iss.IssueAccessToken("u1", "u1@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := iss.VerifyAccessToken(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.UserID != "u1" || c.Email != "u1@example.com" || c.ID == "" {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

func TestAccessTokenExpiredIsDistinct(t *testing.T) {
	iss, clk := newTestIssuer(t)
	tok, _ := iss.IssueAccessToken("u1", "")
	clk.Advance(DefaultAccessTTL + time.Second)
	if _, err := iss.VerifyAccessToken(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
	if _, err := iss.VerifyAccessToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	iss, _ := newTestIssuer(t)
	access, _ := iss.IssueAccessToken("u1", "")
	refresh, _ := iss.IssueRefreshToken("u1")

	if _, err := iss.VerifyRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access accepted as refresh: %v", err)
	}
	if _, err := iss.VerifyAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh accepted as access: %v", err)
	}
}

func TestRefreshTokensDifferWithinSameInstant(t *testing.T) {
	iss, _ := newTestIssuer(t)
	a, _ := iss.IssueRefreshToken("u1")
	b, _ := iss.IssueRefreshToken("u1")
	if a == b {
		t.Fatal("refresh tokens minted at the same instant must differ")
	}
	if _, err := iss.VerifyRefreshToken(a); err != nil {
		t.Fatalf("verify a: %v", err)
	}
}

func TestRefreshTokenExpiryIsInvalid(t *testing.T) {
	iss, clk := newTestIssuer(t)
	tok, _ := iss.IssueRefreshToken("u1")
	clk.Advance(DefaultRefreshTTL + time.Minute)
	if _, err := iss.VerifyRefreshToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestOpaqueTokenAndResetExpiry(t *testing.T) {
	iss, clk := newTestIssuer(t)
	tok, err := IssueOpaqueToken()
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(tok) {
		t.Fatalf("opaque token %q is not 64 hex chars", tok)
	}
	if got, want := iss.PasswordResetExpiry(), clk.Now().Add(time.Hour); !got.Equal(want) {
		t.Fatalf("reset expiry = %v, want %v", got, want)
	}
}
