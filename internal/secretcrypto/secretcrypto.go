// Package secretcrypto encrypts Secret values at rest, genericised from
// the teacher's infrastructure/secrets.Manager (AES-GCM, nonce-prefixed
// ciphertext, hex/raw master-key normalisation) with the Repository and
// per-request audit-log coupling stripped out: nanocld's Secret object
// has no per-caller access policy, so this package is pure encrypt/decrypt.
// Per-secret keys are derived from the one master key via HKDF-SHA256, the
// way the teacher's internal/crypto.DeriveKey separates a stable master
// secret from the many derived keys built on top of it, salted here by the
// secret's own kind_key rather than an account id.
package secretcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidCiphertext = errors.New("secretcrypto: invalid ciphertext")
	ErrInvalidMasterKey  = errors.New("secretcrypto: master key must be 32 bytes (or 64 hex chars)")
)

const hkdfInfo = "nanocld-secret-v1"

// Box derives a distinct AES-256-GCM key per secret from one master key,
// so compromising one secret's derived key never exposes another's.
type Box struct {
	masterKey []byte
}

// NewBox builds a Box from rawKey, accepting either 64 hex characters or
// 32 raw bytes (optionally "0x"-prefixed in the hex case).
func NewBox(rawKey []byte) (*Box, error) {
	key, err := normalizeMasterKey(rawKey)
	if err != nil {
		return nil, err
	}
	return &Box{masterKey: key}, nil
}

// Encrypt seals value under a key derived for salt (the secret's kind_key),
// prefixing the ciphertext with its random nonce.
func (b *Box) Encrypt(salt, value string) ([]byte, error) {
	aead, err := b.aeadFor(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, []byte(value), nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt opens raw under the key derived for salt; raw must be
// NonceSize()+overhead bytes at minimum.
func (b *Box) Decrypt(salt string, raw []byte) (string, error) {
	aead, err := b.aeadFor(salt)
	if err != nil {
		return "", err
	}
	n := aead.NonceSize()
	if len(raw) < n+1 {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:n], raw[n:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

func (b *Box) aeadFor(salt string) (cipher.AEAD, error) {
	derived := make([]byte, 32)
	r := hkdf.New(sha256.New, b.masterKey, []byte(salt), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, derived); err != nil {
		return nil, fmt.Errorf("secretcrypto: derive key: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func normalizeMasterKey(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, ErrInvalidMasterKey
	}
	if isHex(trimmed) {
		if decoded, err := hex.DecodeString(trimmed); err == nil && len(decoded) == 32 {
			return decoded, nil
		}
	}
	if len(trimmed) == 32 {
		return []byte(trimmed), nil
	}
	return nil, ErrInvalidMasterKey
}

func isHex(value string) bool {
	if value == "" {
		return false
	}
	for _, c := range value {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
