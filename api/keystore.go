// Package api exposes the organizer over HTTP: key registration, job
// submission, and the poll endpoints.
package api

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyTTL is how long a registered API key stays resolvable.
const KeyTTL = 10 * time.Minute

// EncKeyEnvVar optionally supplies the server secret as base64.
const EncKeyEnvVar = "CHATORG_ENC_KEY"

const secretLen = 32

// KeyStore holds caller API keys encrypted at rest, addressed by short-lived
// opaque tokens. Keys are stored only as AES-GCM ciphertext; an expired or
// undecryptable entry is dropped on first read.
type KeyStore struct {
	mu      sync.Mutex
	aead    cipher.AEAD
	ttl     time.Duration
	entries map[string]keyEntry

	now func() time.Time
}

type keyEntry struct {
	ciphertext []byte
	expiresAt  time.Time
}

// NewKeyStore builds a store sealed with the given 32-byte secret.
func NewKeyStore(secret []byte, ttl time.Duration) (*KeyStore, error) {
	if len(secret) != secretLen {
		return nil, fmt.Errorf("NewKeyStore: secret must be %d bytes, got %d", secretLen, len(secret))
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("NewKeyStore: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("NewKeyStore: %w", err)
	}
	if ttl <= 0 {
		ttl = KeyTTL
	}
	return &KeyStore{
		aead:    aead,
		ttl:     ttl,
		entries: make(map[string]keyEntry),
		now:     time.Now,
	}, nil
}

// Register encrypts apiKey and returns a fresh token for it.
func (s *KeyStore) Register(apiKey string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("Register: %w", err)
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(apiKey), nil)

	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = keyEntry{
		ciphertext: ciphertext,
		expiresAt:  s.now().Add(s.ttl),
	}
	return token, nil
}

// Resolve decrypts the key behind token. A missing, expired, or
// undecryptable entry yields false, and the entry is removed.
func (s *KeyStore) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return "", false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, token)
		return "", false
	}

	nonceSize := s.aead.NonceSize()
	if len(e.ciphertext) < nonceSize {
		delete(s.entries, token)
		return "", false
	}
	plaintext, err := s.aead.Open(nil, e.ciphertext[:nonceSize], e.ciphertext[nonceSize:], nil)
	if err != nil {
		delete(s.entries, token)
		return "", false
	}
	return string(plaintext), true
}

// TTL reports the configured key lifetime.
func (s *KeyStore) TTL() time.Duration {
	return s.ttl
}

// LoadOrCreateSecret resolves the server secret: the EncKeyEnvVar environment
// variable (base64) wins, then an existing key file, else a fresh secret is
// generated and persisted at path with owner-only permissions.
func LoadOrCreateSecret(path string) ([]byte, error) {
	if env := os.Getenv(EncKeyEnvVar); env != "" {
		secret, err := base64.StdEncoding.DecodeString(env)
		if err != nil {
			return nil, fmt.Errorf("LoadOrCreateSecret: decode %s: %w", EncKeyEnvVar, err)
		}
		if len(secret) != secretLen {
			return nil, fmt.Errorf("LoadOrCreateSecret: %s must decode to %d bytes", EncKeyEnvVar, secretLen)
		}
		return secret, nil
	}

	b, err := os.ReadFile(path)
	if err == nil {
		secret, decErr := base64.StdEncoding.DecodeString(string(b))
		if decErr != nil || len(secret) != secretLen {
			return nil, fmt.Errorf("LoadOrCreateSecret: key file %s is malformed", path)
		}
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("LoadOrCreateSecret: read key file: %w", err)
	}

	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("LoadOrCreateSecret: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("LoadOrCreateSecret: mkdir: %w", err)
		}
	}
	encoded := base64.StdEncoding.EncodeToString(secret)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("LoadOrCreateSecret: write key file: %w", err)
	}
	return secret, nil
}
