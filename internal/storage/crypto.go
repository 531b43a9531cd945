package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	gcmMagic     = "GCM3NCR0"
	pbkdf2Rounds = 100000
	saltSize     = 16
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// EncryptGCM seals data as magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
func EncryptGCM(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gcmMagic)+saltSize+gcmNonceSize+len(data)+gcmTagSize)
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// DecryptGCM opens data produced by EncryptGCM.
func DecryptGCM(data []byte, password string) ([]byte, error) {
	if len(data) < len(gcmMagic)+saltSize+gcmNonceSize+gcmTagSize {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	if string(data[:len(gcmMagic)]) != gcmMagic {
		return nil, fmt.Errorf("missing %s header", gcmMagic)
	}
	rest := data[len(gcmMagic):]
	salt, nonce, sealed := rest[:saltSize], rest[saltSize:saltSize+gcmNonceSize], rest[saltSize+gcmNonceSize:]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Rounds, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
