package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/desertthunder/tunelink/internal/shared"
)

const (
	keySize   = 32
	ivSize    = 12
	tagSize   = 16
	headerLen = ivSize + tagSize
)

// ErrKeySize is returned for any key that is not exactly 32 bytes.
var ErrKeySize = errors.New("encryption key must be 32 bytes")

// Cipher seals token strings with AES-256-GCM.
//
// The encoded artifact is base64(IV || tag || ciphertext) with a fresh 12 byte IV per
// call. crypto/cipher emits ciphertext || tag, so Encrypt and Decrypt reorder the tail.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a [Cipher] from a raw 32 byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// NewCipherFromHex parses a 64 character hex key with [shared.ParseEncryptionKey].
func NewCipherFromHex(hexKey string) (*Cipher, error) {
	key, err := shared.ParseEncryptionKey(hexKey)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt seals plaintext and returns the encoded artifact.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, headerLen+len(ct))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt authenticates and opens an artifact produced by [Cipher.Encrypt].
//
// Malformed input, a wrong key and tampered data all fail with [shared.ErrDecryption].
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", shared.ErrDecryption, err)
	}
	if len(raw) < headerLen {
		return "", fmt.Errorf("%w: artifact shorter than %d bytes", shared.ErrDecryption, headerLen)
	}

	iv, tag, ct := raw[:ivSize], raw[ivSize:headerLen], raw[headerLen:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", shared.ErrDecryption)
	}
	return string(plaintext), nil
}

// Encrypt seals plaintext with key in one call.
func Encrypt(plaintext string, key []byte) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

// Decrypt opens encoded with key in one call.
func Decrypt(encoded string, key []byte) (string, error) {
	c, err := NewCipher(key)
	if err != nil {
		return "", err
	}
	return c.Decrypt(encoded)
}
