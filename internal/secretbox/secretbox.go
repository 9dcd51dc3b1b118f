// Package secretbox implements authenticated symmetric encryption for
// refresh tokens and 2FA secrets at rest: AES-256-GCM with a key derived
// once at startup from a configured 32-byte string.
//
// Ciphertext is stored as three colon-separated hex segments:
// nonce:tag:ciphertext. There is no key-rotation path; re-key by
// re-encrypting all stored blobs offline.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrCryptoInvalid is returned by Decrypt when the blob is malformed,
// the nonce has the wrong length, or the auth tag fails to verify.
var ErrCryptoInvalid = errors.New("crypto invalid: malformed or tampered ciphertext")

// Box seals and opens secrets with a fixed 256-bit key.
type Box struct {
	gcm cipher.AEAD
}

// New derives a 256-bit key from key32 (SHA-256 hash, so any string
// length is accepted, but callers should still enforce the 32-byte
// configuration requirement at load time per C20).
func New(key32 string) (*Box, error) {
	sum := sha256.Sum256([]byte(key32))

	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("secretbox: create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: create gcm: %w", err)
	}

	return &Box{gcm: gcm}, nil
}

// Encrypt seals plaintext with a fresh random nonce, returning
// "nonce:tag:ciphertext" in lowercase hex.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: generate nonce: %w", err)
	}

	sealed := b.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - b.gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed segment count,
// wrong-length nonce, bad hex, or failed authentication returns
// ErrCryptoInvalid.
func (b *Box) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", ErrCryptoInvalid
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != b.gcm.NonceSize() {
		return "", ErrCryptoInvalid
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != b.gcm.Overhead() {
		return "", ErrCryptoInvalid
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrCryptoInvalid
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := b.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCryptoInvalid
	}

	return string(plaintext), nil
}
