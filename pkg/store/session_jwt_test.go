package store

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTSessionIssueAndVerify(t *testing.T) {
	m, err := NewJWTSessionManager(testSecret, time.Minute)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	token, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected subject: %q", userID)
	}
}

func TestJWTSessionRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewJWTSessionManager(testSecret, time.Minute)
	verifier, _ := NewJWTSessionManager(strings.Repeat("x", 32), time.Minute)
	token, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session, got: %v", err)
	}
}

func TestJWTSessionRejectsGarbage(t *testing.T) {
	m, _ := NewJWTSessionManager(testSecret, time.Minute)
	if _, err := m.Verify("not-a-token"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session, got: %v", err)
	}
}

func TestJWTSessionManagerRequiresStrongSecret(t *testing.T) {
	if _, err := NewJWTSessionManager("short", time.Minute); err == nil {
		t.Fatalf("expected constructor error for short secret")
	}
}
