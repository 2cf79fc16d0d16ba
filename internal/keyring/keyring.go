// Package keyring seals per-user API keys at rest with a machine-local AES-GCM key.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const keySize = 32

var ErrCiphertextTooShort = errors.New("keyring: ciphertext too short")

type Keyring struct {
	aead cipher.AEAD
}

// LoadOrCreate reads the key file at path, generating it with 0600 permissions on first use.
func LoadOrCreate(path string) (*Keyring, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != keySize {
			return nil, fmt.Errorf("keyring: invalid key size in %s: got %d", path, len(key))
		}
	case errors.Is(err, os.ErrNotExist):
		key = make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, key, 0o600); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return New(key)
}

func New(key []byte) (*Keyring, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Keyring{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext). An empty plaintext seals to "".
func (k *Keyring) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := k.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (k *Keyring) Open(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	blob, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("keyring: decode: %w", err)
	}
	n := k.aead.NonceSize()
	if len(blob) < n {
		return "", ErrCiphertextTooShort
	}
	plain, err := k.aead.Open(nil, blob[:n], blob[n:], nil)
	if err != nil {
		return "", fmt.Errorf("keyring: open: %w", err)
	}
	return string(plain), nil
}
