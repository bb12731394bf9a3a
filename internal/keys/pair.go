package keys

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/awnumar/memguard"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// Scheme names a keypair crypto scheme.
type Scheme string

const (
	Sr25519 Scheme = "sr25519"
	Ed25519 Scheme = "ed25519"

	DefaultScheme = Sr25519
)

const (
	miniSecretSize   = 32
	miniSecretRounds = 2048
	miniSecretSalt   = "mnemonic"
)

var ErrUnknownScheme = errors.New("unknown crypto scheme")

// ParseScheme accepts "sr25519" or "ed25519". The empty string selects the
// default scheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case "":
		return DefaultScheme, nil
	case Sr25519, Ed25519:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// Pair is a keypair derived from a mnemonic.
type Pair struct {
	Scheme      Scheme
	PublicKey   []byte
	SS58Address string
	SS58Format  uint16

	phrase []byte
	seed   []byte
}

// FromPhrase derives the substrate keypair for phrase under scheme and
// encodes its address with ss58Format. The mini secret is the first 32 bytes
// of PBKDF2-HMAC-SHA512 over the phrase's BIP-39 entropy.
func FromPhrase(phrase string, scheme Scheme, ss58Format uint16) (*Pair, error) {
	phrase = NormalizeMnemonic(phrase)
	if err := ValidateMnemonic(phrase); err != nil {
		return nil, err
	}

	entropy, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	defer wipe(entropy)

	derived := pbkdf2.Key(entropy, []byte(miniSecretSalt), miniSecretRounds, 64, sha512.New)
	seed := append([]byte(nil), derived[:miniSecretSize]...)
	wipe(derived)

	pub, err := publicKey(scheme, seed)
	if err != nil {
		wipe(seed)
		return nil, err
	}

	addr, err := EncodeSS58(pub, ss58Format)
	if err != nil {
		wipe(seed)
		return nil, err
	}

	return &Pair{
		Scheme:      scheme,
		PublicKey:   pub,
		SS58Address: addr,
		SS58Format:  ss58Format,
		phrase:      []byte(phrase),
		seed:        seed,
	}, nil
}

func publicKey(scheme Scheme, seed []byte) ([]byte, error) {
	switch scheme {
	case Sr25519:
		var raw [miniSecretSize]byte
		copy(raw[:], seed)
		defer wipe(raw[:])

		msk, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("sr25519 mini secret: %w", err)
		}
		pk, err := msk.ExpandEd25519().Public()
		if err != nil {
			return nil, fmt.Errorf("sr25519 public key: %w", err)
		}
		pub := pk.Encode()
		return pub[:], nil
	case Ed25519:
		priv := ed25519.NewKeyFromSeed(seed)
		defer wipe(priv)
		return append([]byte(nil), priv.Public().(ed25519.PublicKey)...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// AccountID is the 0x-prefixed hex public key. Substrate account ids for
// sr25519 and ed25519 are the public key itself.
func (p *Pair) AccountID() string { return hex0x(p.PublicKey) }

// PublicKeyHex is the 0x-prefixed hex public key.
func (p *Pair) PublicKeyHex() string { return hex0x(p.PublicKey) }

// Phrase returns the normalized mnemonic. Callers own the returned bytes.
func (p *Pair) Phrase() []byte { return append([]byte(nil), p.phrase...) }

// SeedHex returns the 0x-prefixed hex mini secret. Callers own the returned bytes.
func (p *Pair) SeedHex() []byte {
	out := make([]byte, 2+hex.EncodedLen(len(p.seed)))
	copy(out, "0x")
	hex.Encode(out[2:], p.seed)
	return out
}

// Wipe zeroes the phrase and seed held by p.
func (p *Pair) Wipe() {
	wipe(p.phrase)
	wipe(p.seed)
	p.phrase, p.seed = nil, nil
}

func hex0x(b []byte) string { return "0x" + hex.EncodeToString(b) }

func wipe(b []byte) { memguard.WipeBytes(b) }
