package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/oauth2"
)

var ErrCorruptCredential = errors.New("stored ledger credential cannot be opened")

// credentialSalt scopes derived keys to this use.
const credentialSalt = "splitthat/ledger-credential/v1"

// Sealer encrypts ledger credentials at rest with AES-256-GCM.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the encryption key from secret with scrypt.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("credential encryption secret is required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(credentialSalt), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts a token. The result is nonce||ciphertext, base64url encoded.
func (s *Sealer) Seal(tok *oauth2.Token) (string, error) {
	plain, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (*oauth2.Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return nil, ErrCorruptCredential
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCorruptCredential
	}
	var tok oauth2.Token
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, ErrCorruptCredential
	}
	return &tok, nil
}
