package krypto

import (
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
)

const (
	// SaltLengthBytes is the Argon2 salt length used by the NaCl keyfile scheme.
	SaltLengthBytes = 16
	// KeyLengthBytes is the secretbox key size.
	KeyLengthBytes = 32
)

// NaclSalt is the salt every "$NACL" keyfile key is derived with. It is part
// of the on-disk format: changing it makes existing keyfiles undecryptable.
var NaclSalt = [SaltLengthBytes]byte{
	0x13, 0x71, 0x83, 0xdf, 0xf1, 0x5a, 0x09, 0xbc,
	0x9c, 0x90, 0xb5, 0x51, 0x87, 0x39, 0xe9, 0xb1,
}

// Argon2Variant selects between the data-independent and hybrid Argon2 modes.
type Argon2Variant string

const (
	Argon2i  Argon2Variant = "argon2i"
	Argon2id Argon2Variant = "argon2id"
)

// Argon2Params captures tunable parameters for Argon2.
type Argon2Params struct {
	Variant     Argon2Variant
	MemoryMB    uint32
	Time        uint32
	Parallelism uint8
	SaltLen     int
	KeyLen      uint32
}

// SensitiveArgon2iParams returns libsodium's crypto_pwhash_argon2i
// OPSLIMIT_SENSITIVE / MEMLIMIT_SENSITIVE parameter set.
func SensitiveArgon2iParams() Argon2Params {
	return Argon2Params{
		Variant:     Argon2i,
		MemoryMB:    512,
		Time:        8,
		Parallelism: 1,
		SaltLen:     SaltLengthBytes,
		KeyLen:      KeyLengthBytes,
	}
}

// DeriveKey derives the secretbox key for password using NaclSalt and the
// sensitive Argon2i parameters. Identical passwords always yield identical
// keys.
func DeriveKey(password []byte) ([]byte, error) {
	return DeriveKeyArgon2(password, NaclSalt[:], SensitiveArgon2iParams())
}

// DeriveKeyArgon2 derives a key using Argon2 with the provided parameters.
// Parameter errors are reported as ErrKeyDerivation.
func DeriveKeyArgon2(password []byte, salt []byte, p Argon2Params) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: salt is required", ErrKeyDerivation)
	}
	if p.SaltLen > 0 && len(salt) != p.SaltLen {
		return nil, fmt.Errorf("%w: salt must be %d bytes", ErrKeyDerivation, p.SaltLen)
	}
	if p.KeyLen == 0 {
		return nil, fmt.Errorf("%w: key length must be positive", ErrKeyDerivation)
	}
	if p.MemoryMB == 0 {
		return nil, fmt.Errorf("%w: memory parameter must be positive", ErrKeyDerivation)
	}
	if p.Time == 0 {
		return nil, fmt.Errorf("%w: time parameter must be positive", ErrKeyDerivation)
	}
	if p.Parallelism == 0 {
		return nil, fmt.Errorf("%w: parallelism must be positive", ErrKeyDerivation)
	}

	memoryKB := p.MemoryMB * 1024
	var key []byte
	switch p.Variant {
	case Argon2i:
		key = argon2.Key(password, salt, p.Time, memoryKB, p.Parallelism, p.KeyLen)
	case Argon2id:
		key = argon2.IDKey(password, salt, p.Time, memoryKB, p.Parallelism, p.KeyLen)
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrKeyDerivation, p.Variant)
	}
	if uint32(len(key)) != p.KeyLen {
		memguard.WipeBytes(key)
		return nil, fmt.Errorf("%w: derived key has unexpected length %d", ErrKeyDerivation, len(key))
	}
	return key, nil
}
