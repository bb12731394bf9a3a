package krypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the secretbox (XSalsa20) nonce size.
	NonceSize = 24
	// TagSize is the Poly1305 authenticator appended to every ciphertext.
	TagSize = secretbox.Overhead
)

// SealSecretBox encrypts plaintext with XSalsa20-Poly1305 under a fresh
// random nonce, returning the nonce and ciphertext.
func SealSecretBox(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	if len(key) != KeyLengthBytes {
		return nil, nil, fmt.Errorf("secretbox requires a %d-byte key", KeyLengthBytes)
	}

	var k [KeyLengthBytes]byte
	copy(k[:], key)
	defer memguard.WipeBytes(k[:])

	var n [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = secretbox.Seal(nil, plaintext, &n, &k)
	return n[:], ciphertext, nil
}

// OpenSecretBox authenticates and decrypts ciphertext. Any tag mismatch is
// reported as ErrAuthenticationFailed.
func OpenSecretBox(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(key) != KeyLengthBytes {
		return nil, fmt.Errorf("secretbox requires a %d-byte key", KeyLengthBytes)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: invalid nonce size", ErrMalformedEnvelope)
	}

	var k [KeyLengthBytes]byte
	copy(k[:], key)
	defer memguard.WipeBytes(k[:])

	var n [NonceSize]byte
	copy(n[:], nonce)

	plaintext, ok := secretbox.Open(nil, ciphertext, &n, &k)
	if !ok {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
