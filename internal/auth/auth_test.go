package auth

import (
	"context"
	"testing"
	"time"

	"meridian.org/internal/authz"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("MERIDIAN_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("p-42", authz.RoleManager, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	p, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if p.ID != "p-42" {
		t.Fatalf("unexpected subject: %s", p.ID)
	}
	if p.Role != authz.RoleManager {
		t.Fatalf("unexpected role: %s", p.Role)
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Setenv("MERIDIAN_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("p-42", authz.RoleStaff, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	exp, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("TokenExpiry: %v", err)
	}
	now := time.Now()
	if exp.Before(now.Add(29*time.Minute)) || exp.After(now.Add(31*time.Minute)) {
		t.Fatalf("expiry outside expected window: %v", exp)
	}

	if _, err := TokenExpiry("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestParseRejectsInvalidTokens(t *testing.T) {
	t.Setenv("MERIDIAN_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := ParseAndValidate("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	// A token signed with a different secret must not validate.
	token, err := GenerateToken("p-42", authz.RoleAdvisor, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	t.Setenv("MERIDIAN_AUTH_SECRET", "other-secret")
	ResetSecretForTests()
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	t.Setenv("MERIDIAN_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("p-42", authz.Role("superuser"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	p := authz.Principal{ID: "p-7", Role: authz.RoleStaff}

	ctx = ContextWithPrincipal(ctx, p)
	got, ok := PrincipalFromContext(ctx)
	if !ok || got != p {
		t.Fatalf("unexpected principal: %+v, ok=%v", got, ok)
	}

	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatalf("empty context must not yield a principal")
	}

	ctx = ContextWithToken(ctx, "raw-token")
	tok, ok := TokenFromContext(ctx)
	if !ok || tok != "raw-token" {
		t.Fatalf("unexpected token: %q, ok=%v", tok, ok)
	}
}
