package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrKeyNotFound indicates the requested verification key is unknown.
var ErrKeyNotFound = errors.New("key not found")

// KeyProvider defines the interface for providing signing keys.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
}

// FileKeyProvider reads RSA keys from a directory. The first private key
// found becomes the signing key; every key file contributes a verification
// key under its filename (without extension) as the kid.
type FileKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
}

// NewFileKeyProvider loads all PEM key files from keyDir.
func NewFileKeyProvider(keyDir string) (*FileKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &FileKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("decode PEM block from %s", path)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			if provider.signingKey == nil {
				provider.signingKey = key
			}
			provider.keys[kid] = &key.PublicKey
			continue
		}

		if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			if rsaKey, ok := key.(*rsa.PrivateKey); ok {
				if provider.signingKey == nil {
					provider.signingKey = rsaKey
				}
				provider.keys[kid] = &rsaKey.PublicKey
				continue
			}
		}

		if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
			if rsaKey, ok := key.(*rsa.PublicKey); ok {
				provider.keys[kid] = rsaKey
				continue
			}
		}

		return nil, fmt.Errorf("parse key from file %s", path)
	}

	if provider.signingKey == nil {
		return nil, errors.New("no private key found for signing")
	}

	return provider, nil
}

// GetSigningKey returns the private key for signing tokens.
func (p *FileKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// GetVerificationKey returns the public key for verifying tokens.
func (p *FileKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}
