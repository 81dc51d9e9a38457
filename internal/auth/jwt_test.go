package auth

import (
	"errors"
	"testing"
	"time"
)

func testManager(ttl time.Duration) *Manager {
	return &Manager{
		Secret: []byte("test-secret"),
		TTL:    ttl,
		Issuer: "curehub-backend",
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	m := testManager(30 * 24 * time.Hour)
	token, err := m.Issue("principal-123", "patient")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != "principal-123" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != "patient" {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
}

func TestParseExpiredToken(t *testing.T) {
	m := testManager(-time.Hour)
	token, err := m.Issue("principal-123", "doctor")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = m.Parse(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	m := testManager(time.Hour)
	token, err := m.Issue("principal-123", "doctor")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other := testManager(time.Hour)
	other.Secret = []byte("different-secret")
	_, err = other.Parse(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseMalformedToken(t *testing.T) {
	m := testManager(time.Hour)
	_, err := m.Parse("not-a-token")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
