package krypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

// NaclMagic prefixes every envelope produced by Encrypt.
const NaclMagic = "$NACL"

const (
	ansibleMagic = "$ANSIBLE_VAULT"
	legacyMagic  = "gAAAAA"

	// MinEnvelopeSize is magic + nonce + authenticator.
	MinEnvelopeSize = len(NaclMagic) + NonceSize + TagSize
)

var (
	// ErrKeyDerivation reports a rejected key-derivation parameter set.
	ErrKeyDerivation = errors.New("key derivation failed")
	// ErrMalformedEnvelope reports input that is too short or lacks the magic prefix.
	ErrMalformedEnvelope = errors.New("malformed keyfile envelope")
	// ErrAuthenticationFailed reports a ciphertext that does not verify under
	// the derived key. A wrong password and a corrupted file are reported the
	// same way.
	ErrAuthenticationFailed = errors.New("wrong password or corrupted keyfile")
	// ErrUnsupportedEncryptionType reports an encryption type with no implementation.
	ErrUnsupportedEncryptionType = errors.New("unsupported encryption type")
)

// EncryptionType identifies how keyfile bytes are protected. Only Nacl can
// be produced or opened; the other values exist so keyfiles written by other
// tools are recognised and refused explicitly.
type EncryptionType int

const (
	EncryptionUnknown EncryptionType = iota
	EncryptionUnencrypted
	EncryptionLegacy
	EncryptionAnsible
	EncryptionNacl
)

func (t EncryptionType) String() string {
	switch t {
	case EncryptionUnencrypted:
		return "unencrypted"
	case EncryptionLegacy:
		return "legacy"
	case EncryptionAnsible:
		return "ansible"
	case EncryptionNacl:
		return "nacl"
	default:
		return "unknown"
	}
}

// DetectEncryptionType classifies keyfile bytes by their leading magic.
func DetectEncryptionType(data []byte) EncryptionType {
	switch {
	case bytes.HasPrefix(data, []byte(NaclMagic)):
		return EncryptionNacl
	case bytes.HasPrefix(data, []byte(ansibleMagic)):
		return EncryptionAnsible
	case bytes.HasPrefix(data, []byte(legacyMagic)):
		return EncryptionLegacy
	case json.Valid(bytes.TrimSpace(data)):
		return EncryptionUnencrypted
	default:
		return EncryptionUnknown
	}
}

// IsEncrypted reports whether data carries one of the known encryption magics.
func IsEncrypted(data []byte) bool {
	switch DetectEncryptionType(data) {
	case EncryptionNacl, EncryptionLegacy, EncryptionAnsible:
		return true
	default:
		return false
	}
}

// Encrypt seals plaintext under a key derived from password and returns the
// "$NACL" envelope. Each call uses a new random nonce.
func Encrypt(plaintext, password []byte) ([]byte, error) {
	return EncryptWith(EncryptionNacl, plaintext, password)
}

// Decrypt opens an envelope produced by Encrypt.
//
// A failed authentication cannot tell a wrong password apart from a tampered
// or corrupted file; both return ErrAuthenticationFailed. Callers must not
// try to distinguish them.
func Decrypt(envelope, password []byte) ([]byte, error) {
	return DecryptWith(EncryptionNacl, envelope, password)
}

// EncryptWith dispatches encryption on t.
func EncryptWith(t EncryptionType, plaintext, password []byte) ([]byte, error) {
	switch t {
	case EncryptionNacl:
		return defaultNacl.encrypt(plaintext, password)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncryptionType, t)
	}
}

// DecryptWith dispatches decryption on t.
func DecryptWith(t EncryptionType, envelope, password []byte) ([]byte, error) {
	switch t {
	case EncryptionNacl:
		return defaultNacl.decrypt(envelope, password)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncryptionType, t)
	}
}

// naclScheme binds the KDF inputs of the "$NACL" format.
type naclScheme struct {
	salt   []byte
	params Argon2Params
}

var defaultNacl = naclScheme{
	salt:   NaclSalt[:],
	params: SensitiveArgon2iParams(),
}

func (s naclScheme) encrypt(plaintext, password []byte) ([]byte, error) {
	key, err := DeriveKeyArgon2(password, s.salt, s.params)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(key)

	nonce, ciphertext, err := SealSecretBox(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal keyfile: %w", err)
	}

	envelope := make([]byte, 0, len(NaclMagic)+len(nonce)+len(ciphertext))
	envelope = append(envelope, NaclMagic...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)
	return envelope, nil
}

func (s naclScheme) decrypt(envelope, password []byte) ([]byte, error) {
	nonce, ciphertext, err := splitEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKeyArgon2(password, s.salt, s.params)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(key)

	return OpenSecretBox(key, nonce, ciphertext)
}

func splitEnvelope(envelope []byte) (nonce, ciphertext []byte, err error) {
	if !bytes.HasPrefix(envelope, []byte(NaclMagic)) {
		return nil, nil, fmt.Errorf("%w: missing %s prefix", ErrMalformedEnvelope, NaclMagic)
	}
	if len(envelope) < MinEnvelopeSize {
		return nil, nil, fmt.Errorf("%w: %d bytes, need at least %d",
			ErrMalformedEnvelope, len(envelope), MinEnvelopeSize)
	}
	body := envelope[len(NaclMagic):]
	return body[:NonceSize], body[NonceSize:], nil
}
