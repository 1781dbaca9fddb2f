// Package encryption seals sensitive card fields at rest with AES-256-GCM.
// Ciphertexts are encoded as hex(nonce) ":" hex(sealed payload).
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"merchantpay/internal/apperr"

	"golang.org/x/crypto/hkdf"
)

const (
	MinKeyLength = 32
	delimiter    = ":"
	keyInfo      = "merchantpay card fields v1"
)

var (
	ErrMissingKey = apperr.New(apperr.KindConfiguration, "missing_encryption_key", "encryption key is not configured")
	ErrShortKey   = apperr.New(apperr.KindConfiguration, "invalid_encryption_key", "encryption key must be at least 32 characters")
	ErrMalformed  = apperr.New(apperr.KindCrypto, "malformed_ciphertext", "ciphertext is malformed")
	ErrTampered   = apperr.New(apperr.KindCrypto, "ciphertext_rejected", "ciphertext failed authentication")
)

type Cipher struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from the configured secret. The secret is
// read once at startup and the Cipher is shared by every caller.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	if len(secret) < MinKeyLength {
		return nil, ErrShortKey
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "invalid_encryption_key", "unable to derive encryption key", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "invalid_encryption_key", "unable to build cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "invalid_encryption_key", "unable to build cipher", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", apperr.Wrap(apperr.KindCrypto, "nonce_unavailable", "unable to generate nonce", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + delimiter + hex.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	nonceHex, payloadHex, ok := strings.Cut(ciphertext, delimiter)
	if !ok || strings.Contains(payloadHex, delimiter) {
		return "", ErrMalformed
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrMalformed
	}
	payload, err := hex.DecodeString(payloadHex)
	if err != nil || len(payload) < c.aead.Overhead() {
		return "", ErrMalformed
	}
	plaintext, err := c.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", ErrTampered
	}
	return string(plaintext), nil
}

// MaskCardNumber replaces every digit but the last four with '*'. Inputs
// with four or fewer digits are fully masked.
func MaskCardNumber(number string) string {
	digits := make([]byte, 0, len(number))
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			digits = append(digits, number[i])
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

func LastFour(number string) string {
	masked := MaskCardNumber(number)
	if len(masked) < 4 {
		return ""
	}
	return masked[len(masked)-4:]
}
