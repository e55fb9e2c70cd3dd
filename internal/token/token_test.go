package token

import (
	"errors"
	"testing"
	"time"

	"dentalgw/internal/kinds"
)

func TestIssueAndVerifyDesktopToken(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Hour)
	verifier := NewVerifier([]byte("secret"))

	raw, exp, err := issuer.IssueDesktop("desktop-session-1")
	if err != nil {
		t.Fatalf("IssueDesktop: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	claims, err := verifier.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Scope != ScopeDesktop {
		t.Errorf("expected desktop scope, got %s", claims.Scope)
	}
	if claims.Subject != "desktop-session-1" {
		t.Errorf("expected subject to round-trip, got %s", claims.Subject)
	}
}

func TestMobileTokenPinsChannel(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Hour)
	verifier := NewVerifier([]byte("secret"))

	raw, _, err := issuer.IssueMobile("mobile-session-1", "pair-123456")
	if err != nil {
		t.Fatalf("IssueMobile: %v", err)
	}

	claims, err := verifier.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !claims.AllowsChannel("pair-123456") {
		t.Error("expected mobile token to allow its pinned channel")
	}
	if claims.AllowsChannel("pair-000000") {
		t.Error("expected mobile token to reject a different channel")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), -time.Minute)
	verifier := NewVerifier([]byte("secret"))

	raw, _, err := issuer.IssueDesktop("desktop-session-1")
	if err != nil {
		t.Fatalf("IssueDesktop: %v", err)
	}

	if _, err := verifier.Verify(raw); !errors.Is(err, kinds.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Hour)
	verifier := NewVerifier([]byte("different-secret"))

	raw, _, err := issuer.IssueDesktop("desktop-session-1")
	if err != nil {
		t.Fatalf("IssueDesktop: %v", err)
	}

	if _, err := verifier.Verify(raw); !errors.Is(err, kinds.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
