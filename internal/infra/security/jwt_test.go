package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
)

func createTestKeyProvider(t *testing.T) (*FileKeyProvider, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	dir := t.TempDir()
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(filepath.Join(dir, "v1.pem"), pemBytes, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}
	return provider, dir
}

func TestTokenIssuer_IssueAndParseAccessToken(t *testing.T) {
	provider, _ := createTestKeyProvider(t)

	issuer, err := NewTokenIssuer(provider, "v1", "identity-auth", 15*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	account := domain.Account{ID: "acct-1", DisplayName: "Alice", Role: "member", Status: domain.AccountStatusActive}

	signed, err := issuer.IssueAccessToken(account, "stamp-1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := issuer.ParseAccessToken(signed)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.AccountID != account.ID {
		t.Fatalf("expected uid %s, got %s", account.ID, claims.AccountID)
	}
	if claims.DisplayName != "Alice" || claims.Role != "member" {
		t.Fatalf("expected display name and role claims, got %+v", claims)
	}
	if claims.SecurityStamp != "stamp-1" {
		t.Fatalf("expected embedded security stamp, got %q", claims.SecurityStamp)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", claims.ExpiresAt)
	}
}

func TestTokenIssuer_ParseRejectsExpired(t *testing.T) {
	provider, _ := createTestKeyProvider(t)

	issuer, err := NewTokenIssuer(provider, "v1", "identity-auth", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	base := time.Now().UTC()
	issuer.WithClock(func() time.Time { return base })

	signed, err := issuer.IssueAccessToken(domain.Account{ID: "acct-2"}, "stamp")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	issuer.WithClock(func() time.Time { return base.Add(2 * time.Minute) })

	if _, err := issuer.ParseAccessToken(signed); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestTokenIssuer_ParseRejectsGarbage(t *testing.T) {
	provider, _ := createTestKeyProvider(t)

	issuer, err := NewTokenIssuer(provider, "v1", "identity-auth", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	for _, token := range []string{"", "  ", "not.a.jwt"} {
		if _, err := issuer.ParseAccessToken(token); !errors.Is(err, ErrInvalidAccessToken) {
			t.Fatalf("expected ErrInvalidAccessToken for %q, got %v", token, err)
		}
	}
}

func TestTokenIssuer_IssueRefreshToken(t *testing.T) {
	provider, _ := createTestKeyProvider(t)

	issuer, err := NewTokenIssuer(provider, "v1", "identity-auth", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	raw, err := issuer.IssueRefreshToken()
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if len(raw) < 43 {
		t.Fatalf("expected at least 32 bytes of entropy, got %d characters", len(raw))
	}

	other, err := issuer.IssueRefreshToken()
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if raw == other {
		t.Fatalf("expected unique refresh tokens")
	}
}
