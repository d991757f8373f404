package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/avelor/identity-auth/internal/core/domain"
	"github.com/avelor/identity-auth/internal/infra/security"
	"github.com/avelor/identity-auth/internal/repository"
)

func newTestIssuer(t *testing.T, accessTTL, refreshTTL time.Duration) *security.TokenIssuer {
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

	provider, err := security.NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}

	issuer, err := security.NewTokenIssuer(provider, "v1", "identity-auth", accessTTL, refreshTTL)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

//

type stubAccountRepository struct {
	accounts       map[string]domain.Account
	lastLoginCalls []string
}

func (r *stubAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if account, ok := r.accounts[id]; ok {
		copy := account
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepository) GetByIdentifier(_ context.Context, identifier string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.Username == identifier || account.Email == identifier {
			copy := account
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAccountRepository) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	r.lastLoginCalls = append(r.lastLoginCalls, id)
	return nil
}

//

type stubCredentialRepository struct {
	credentials map[string]domain.Credential
	createCalls []domain.Credential
}

func (r *stubCredentialRepository) Create(_ context.Context, credential domain.Credential) error {
	if r.credentials == nil {
		r.credentials = make(map[string]domain.Credential)
	}
	r.credentials[credential.AccountID] = credential
	r.createCalls = append(r.createCalls, credential)
	return nil
}

func (r *stubCredentialRepository) GetByAccountID(_ context.Context, accountID string) (*domain.Credential, error) {
	if credential, ok := r.credentials[accountID]; ok {
		copy := credential
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubCredentialRepository) UpdatePassword(_ context.Context, accountID, hash, salt, stamp string, at time.Time) error {
	credential, ok := r.credentials[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	credential.PasswordHash = hash
	credential.PasswordSalt = salt
	credential.SecurityStamp = stamp
	credential.UpdatedAt = at
	r.credentials[accountID] = credential
	return nil
}

func (r *stubCredentialRepository) RotateSecurityStamp(_ context.Context, accountID, stamp string, at time.Time) error {
	credential, ok := r.credentials[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	credential.SecurityStamp = stamp
	credential.UpdatedAt = at
	r.credentials[accountID] = credential
	return nil
}

//

// memoryTokenStore mirrors the row-level semantics the real store provides:
// token hashes are unique keys and Consume is an atomic delete-returning.
type memoryTokenStore struct {
	tokens map[string]domain.RefreshToken
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: make(map[string]domain.RefreshToken)}
}

func (s *memoryTokenStore) Insert(_ context.Context, token domain.RefreshToken) error {
	if _, ok := s.tokens[token.TokenHash]; ok {
		return fmt.Errorf("duplicate token hash")
	}
	s.tokens[token.TokenHash] = token
	return nil
}

func (s *memoryTokenStore) Consume(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	token, ok := s.tokens[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.tokens, tokenHash)
	copy := token
	return &copy, nil
}

func (s *memoryTokenStore) Delete(_ context.Context, tokenHash string) error {
	if _, ok := s.tokens[tokenHash]; !ok {
		return repository.ErrNotFound
	}
	delete(s.tokens, tokenHash)
	return nil
}

func (s *memoryTokenStore) DeleteByAccount(_ context.Context, accountID string) (int, error) {
	count := 0
	for hash, token := range s.tokens {
		if token.AccountID == accountID {
			delete(s.tokens, hash)
			count++
		}
	}
	return count, nil
}

func (s *memoryTokenStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	count := 0
	for hash, token := range s.tokens {
		if !token.ExpiresAt.After(before) {
			delete(s.tokens, hash)
			count++
		}
	}
	return count, nil
}

func (s *memoryTokenStore) ListByAccount(_ context.Context, accountID string) ([]domain.RefreshToken, error) {
	var tokens []domain.RefreshToken
	for _, token := range s.tokens {
		if token.AccountID == accountID {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens, nil
}

//

type memoryCodeStore struct {
	codes map[string]domain.VerificationCode
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{codes: make(map[string]domain.VerificationCode)}
}

func (s *memoryCodeStore) Replace(_ context.Context, code domain.VerificationCode) error {
	for id, existing := range s.codes {
		if existing.Identifier == code.Identifier && existing.Purpose == code.Purpose {
			delete(s.codes, id)
		}
	}
	s.codes[code.ID] = code
	return nil
}

func (s *memoryCodeStore) Find(_ context.Context, identifier string, purpose domain.CodePurpose, value string) (*domain.VerificationCode, error) {
	for _, code := range s.codes {
		if code.Identifier == identifier && code.Purpose == purpose && code.Code == value {
			copy := code
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memoryCodeStore) Delete(_ context.Context, id string) error {
	if _, ok := s.codes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.codes, id)
	return nil
}

func (s *memoryCodeStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	count := 0
	for id, code := range s.codes {
		if !code.ExpiresAt.After(before) {
			delete(s.codes, id)
			count++
		}
	}
	return count, nil
}

//

type stubStampCache struct {
	stamps  map[string]string
	ttls    map[string]time.Duration
	deleted []string
}

func newStubStampCache() *stubStampCache {
	return &stubStampCache{
		stamps: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (c *stubStampCache) GetStamp(_ context.Context, accountID string) (string, error) {
	if stamp, ok := c.stamps[accountID]; ok {
		return stamp, nil
	}
	return "", repository.ErrNotFound
}

func (c *stubStampCache) SetStamp(_ context.Context, accountID, stamp string, ttl time.Duration) error {
	c.stamps[accountID] = stamp
	c.ttls[accountID] = ttl
	return nil
}

func (c *stubStampCache) DeleteStamp(_ context.Context, accountID string) error {
	delete(c.stamps, accountID)
	c.deleted = append(c.deleted, accountID)
	return nil
}

//

// fakeHasher avoids Argon2 cost in service tests; the real hasher has its own
// coverage.
type fakeHasher struct {
	salts int
}

func (h *fakeHasher) Hash(password string) (string, string, error) {
	h.salts++
	return "hashed:" + password, fmt.Sprintf("salt-%d", h.salts), nil
}

func (h *fakeHasher) Verify(password, hash, _ string) (bool, error) {
	return hash == "hashed:"+password, nil
}

//

type stubNotifier struct {
	enabled bool
	failure error
	sent    []sentMessage
}

type sentMessage struct {
	target      string
	displayName string
	code        string
}

func (n *stubNotifier) IsEnabled() bool { return n.enabled }

func (n *stubNotifier) SendVerificationMessage(_ context.Context, target, displayName, code string) error {
	if n.failure != nil {
		return n.failure
	}
	n.sent = append(n.sent, sentMessage{target: target, displayName: displayName, code: code})
	return nil
}

//

type stubEventPublisher struct {
	revoked         []domain.SessionRevokedEvent
	passwordChanged []domain.PasswordChangedEvent
	codesIssued     []domain.VerificationCodeIssuedEvent
}

func (p *stubEventPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.revoked = append(p.revoked, event)
	return nil
}

func (p *stubEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *stubEventPublisher) PublishVerificationCodeIssued(_ context.Context, event domain.VerificationCodeIssuedEvent) error {
	p.codesIssued = append(p.codesIssued, event)
	return nil
}

var errStorageDown = errors.New("storage down")
