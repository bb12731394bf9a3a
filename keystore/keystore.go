package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/awnumar/memguard"

	"github.com/tensors-cli/tensors/krypto"
	"github.com/tensors-cli/tensors/store"
)

var (
	// ErrNoPasswordProvided reports an encrypted save on a record without a password.
	ErrNoPasswordProvided = errors.New("no password provided")
	// ErrIO reports a keyfile read, write or permission failure.
	ErrIO = errors.New("keyfile i/o failed")
	// ErrDeserialization reports keyfile bytes that are not a valid record.
	ErrDeserialization = errors.New("invalid keyfile contents")
	// ErrMissingField reports a record constructed without a derived field.
	ErrMissingField = errors.New("missing keystore field")
)

// Fields are the values derived from a secret phrase by a keypair scheme.
// The keystore treats them as opaque strings.
type Fields struct {
	AccountID    string
	PublicKey    string
	SS58Address  string
	SecretPhrase *SecretString
	SecretSeed   *SecretString
}

// Keystore is the key material of one wallet's coldkey.
//
// Name and Password live in memory only; neither is ever serialized.
type Keystore struct {
	Name         string
	AccountID    string
	PublicKey    string
	SecretPhrase *SecretString
	SecretSeed   *SecretString
	SS58Address  string
	Password     *SecretString
}

// keyfileJSON is the on-disk schema shared by every keyfile form.
type keyfileJSON struct {
	AccountID    string        `json:"accountId"`
	PublicKey    string        `json:"publicKey"`
	SecretPhrase *SecretString `json:"secretPhrase"`
	SecretSeed   *SecretString `json:"secretSeed"`
	SS58Address  string        `json:"ss58Address"`
}

// New builds a keystore from derived fields. password may be nil when the
// record is only saved in public form.
func New(name string, f Fields, password *SecretString) (*Keystore, error) {
	switch {
	case f.AccountID == "":
		return nil, fmt.Errorf("%w: accountId", ErrMissingField)
	case f.PublicKey == "":
		return nil, fmt.Errorf("%w: publicKey", ErrMissingField)
	case f.SS58Address == "":
		return nil, fmt.Errorf("%w: ss58Address", ErrMissingField)
	}

	return &Keystore{
		Name:         name,
		AccountID:    f.AccountID,
		PublicKey:    f.PublicKey,
		SecretPhrase: f.SecretPhrase,
		SecretSeed:   f.SecretSeed,
		SS58Address:  f.SS58Address,
		Password:     password,
	}, nil
}

// HasSecrets reports whether the record carries the phrase or the seed.
func (k *Keystore) HasSecrets() bool {
	return !k.SecretPhrase.Empty() || !k.SecretSeed.Empty()
}

// Wipe zeroes the phrase, seed and password held by the record.
func (k *Keystore) Wipe() {
	k.SecretPhrase.Wipe()
	k.SecretSeed.Wipe()
	k.Password.Wipe()
}

func (k *Keystore) publicJSON() ([]byte, error) {
	return json.Marshal(keyfileJSON{
		AccountID:   k.AccountID,
		PublicKey:   k.PublicKey,
		SS58Address: k.SS58Address,
	})
}

func (k *Keystore) secretJSON() ([]byte, error) {
	return json.Marshal(keyfileJSON{
		AccountID:    k.AccountID,
		PublicKey:    k.PublicKey,
		SecretPhrase: k.SecretPhrase,
		SecretSeed:   k.SecretSeed,
		SS58Address:  k.SS58Address,
	})
}

// SavePublicOnly writes the record to <dir>/coldkeypub.txt with secretPhrase
// and secretSeed set to null.
func (k *Keystore) SavePublicOnly(dir string) error {
	data, err := k.publicJSON()
	if err != nil {
		return fmt.Errorf("encode public keyfile: %w", err)
	}

	path := filepath.Join(dir, store.ColdkeyPubFilename)
	if err := store.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: save public keyfile: %w", ErrIO, err)
	}

	log.Debug().Str("path", path).Str("ss58", k.SS58Address).Msg("saved public keyfile")
	return nil
}

// SaveSecretPlaintext writes the full record, secrets included, unencrypted
// to path. It exists for short-lived or debugging use.
func (k *Keystore) SaveSecretPlaintext(path string) error {
	data, err := k.secretJSON()
	if err != nil {
		return fmt.Errorf("encode keyfile: %w", err)
	}
	defer memguard.WipeBytes(data)

	if err := store.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: save plaintext keyfile: %w", ErrIO, err)
	}

	log.Warn().Str("path", path).Msg("saved unencrypted secret keyfile")
	return nil
}

// SaveEncrypted encrypts the full record with its password and writes the
// envelope to <dir>/coldkey.
func (k *Keystore) SaveEncrypted(dir string) error {
	if k.Password.Empty() {
		return ErrNoPasswordProvided
	}

	data, err := k.secretJSON()
	if err != nil {
		return fmt.Errorf("encode keyfile: %w", err)
	}
	defer memguard.WipeBytes(data)

	envelope, err := krypto.Encrypt(data, k.Password.Expose())
	if err != nil {
		return fmt.Errorf("encrypt keyfile: %w", err)
	}

	path := filepath.Join(dir, store.ColdkeyFilename)
	if err := store.WriteFileAtomic(path, envelope); err != nil {
		return fmt.Errorf("%w: save encrypted keyfile: %w", ErrIO, err)
	}

	log.Debug().Str("path", path).Str("ss58", k.SS58Address).Msg("saved encrypted keyfile")
	return nil
}

// LoadEncrypted reads and decrypts the keyfile at path. The returned record
// keeps a copy of password.
func LoadEncrypted(path string, password *SecretString) (*Keystore, error) {
	data, err := store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read keyfile: %w", ErrIO, err)
	}

	// Unencrypted and unrecognised bytes go through the NaCl path so the
	// envelope check reports them as malformed.
	typ := krypto.DetectEncryptionType(data)
	if !krypto.IsEncrypted(data) {
		typ = krypto.EncryptionNacl
	}

	plain, err := krypto.DecryptWith(typ, data, password.Expose())
	if err != nil {
		log.Debug().Str("path", path).Stringer("type", typ).Err(err).Msg("keyfile decrypt failed")
		return nil, err
	}
	defer memguard.WipeBytes(plain)

	k, err := decode(plain)
	if err != nil {
		return nil, err
	}
	k.Password = NewSecretBytes(password.Expose())
	return k, nil
}

// LoadPublic reads <dir>/coldkeypub.txt. Secret fields are never returned,
// even if the file carries them.
func LoadPublic(dir string) (*Keystore, error) {
	path := filepath.Join(dir, store.ColdkeyPubFilename)
	data, err := store.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read public keyfile: %w", ErrIO, err)
	}

	k, err := decode(data)
	if err != nil {
		return nil, err
	}
	if k.HasSecrets() {
		log.Warn().Str("path", path).Msg("public keyfile contains secret fields; ignoring them")
		k.SecretPhrase.Wipe()
		k.SecretSeed.Wipe()
		k.SecretPhrase, k.SecretSeed = nil, nil
	}
	return k, nil
}

func decode(data []byte) (*Keystore, error) {
	var kf keyfileJSON
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserialization, err)
	}

	k, err := New("", Fields{
		AccountID:    kf.AccountID,
		PublicKey:    kf.PublicKey,
		SS58Address:  kf.SS58Address,
		SecretPhrase: kf.SecretPhrase,
		SecretSeed:   kf.SecretSeed,
	}, nil)
	if err != nil {
		kf.SecretPhrase.Wipe()
		kf.SecretSeed.Wipe()
		return nil, fmt.Errorf("%w: %w", ErrDeserialization, err)
	}
	return k, nil
}
