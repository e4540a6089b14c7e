package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/keygate/keygate/internal/model"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{Secret: "test-secret-key-for-jwt"})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

func testPrincipal() model.Principal {
	return model.Principal{
		ID:       42,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     model.RoleUser,
		IsActive: true,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.CreateAccessToken(testPrincipal(), time.Hour)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject: got %q, want %q", claims.Subject, "42")
	}
	if claims.Username != "alice" {
		t.Errorf("Username: got %q, want %q", claims.Username, "alice")
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email: got %q, want %q", claims.Email, "alice@example.com")
	}
	if claims.Role != model.RoleUser {
		t.Errorf("Role: got %q, want %q", claims.Role, model.RoleUser)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.CreateRefreshToken(42, time.Hour)
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	claims, err := issuer.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject: got %q, want %q", claims.Subject, "42")
	}
	if claims.TokenType != RefreshTokenType {
		t.Errorf("TokenType: got %q, want %q", claims.TokenType, RefreshTokenType)
	}
}

func TestAccessTokenHasNoRefreshType(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.CreateAccessToken(testPrincipal(), time.Hour)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	// An access token passes refresh signature verification, but its
	// token_type claim is empty. The caller's type check rejects it.
	claims, err := issuer.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.TokenType == RefreshTokenType {
		t.Error("access token must not carry the refresh token_type")
	}
}

func TestTokenExpiry(t *testing.T) {
	issuer := newTestIssuer(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }

	token, err := issuer.CreateAccessToken(testPrincipal(), time.Second)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	// Still valid within the TTL.
	if _, err := issuer.VerifyAccess(token); err != nil {
		t.Fatalf("VerifyAccess before expiry: %v", err)
	}

	// Advance the clock past the TTL.
	issuer.now = func() time.Time { return base.Add(2 * time.Second) }

	_, err = issuer.VerifyAccess(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer(TokenConfig{Secret: "a-completely-different-secret"})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, err := issuer.CreateAccessToken(testPrincipal(), time.Hour)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	_, err = other.VerifyAccess(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := issuer.VerifyAccess(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestNewTokenIssuerConfig(t *testing.T) {
	if _, err := NewTokenIssuer(TokenConfig{Secret: ""}); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewTokenIssuer(TokenConfig{Secret: "s", Algorithm: "RS256"}); err == nil {
		t.Error("expected error for asymmetric algorithm")
	}
	for _, alg := range []string{"", "HS256", "HS384", "HS512"} {
		if _, err := NewTokenIssuer(TokenConfig{Secret: "s", Algorithm: alg}); err != nil {
			t.Errorf("algorithm %q: unexpected error %v", alg, err)
		}
	}
}

func TestDecodeUnverified(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.CreateRefreshToken(7, time.Hour)
	if err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	claims := issuer.DecodeUnverified(token)
	if claims["sub"] != "7" {
		t.Errorf("sub: got %v, want %q", claims["sub"], "7")
	}
	if claims["token_type"] != RefreshTokenType {
		t.Errorf("token_type: got %v", claims["token_type"])
	}

	if got := issuer.DecodeUnverified("not a token"); len(got) != 0 {
		t.Errorf("expected empty map for garbage, got %v", got)
	}
}

func TestSubject(t *testing.T) {
	id, err := Subject("42")
	if err != nil || id != 42 {
		t.Errorf("Subject(42): got %d, %v", id, err)
	}
	if _, err := Subject(""); err == nil {
		t.Error("expected error for empty subject")
	}
	if _, err := Subject("alice"); err == nil {
		t.Error("expected error for non-numeric subject")
	}
}
