package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

var (
	ErrWordCount       = errors.New("mnemonic must be 12 or 24 words")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// entropyBits maps a supported word count to its BIP-39 entropy size.
var entropyBits = map[int]int{
	12: 128,
	24: 256,
}

// NewMnemonic returns a fresh English BIP-39 phrase of 12 or 24 words.
func NewMnemonic(words int) (string, error) {
	bits, ok := entropyBits[words]
	if !ok {
		return "", fmt.Errorf("%w: got %d", ErrWordCount, words)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	defer wipe(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("encode mnemonic: %w", err)
	}
	return phrase, nil
}

// NormalizeMnemonic collapses runs of whitespace and lowercases the phrase.
func NormalizeMnemonic(phrase string) string {
	return strings.ToLower(strings.Join(strings.Fields(phrase), " "))
}

// ValidateMnemonic checks word list membership and the BIP-39 checksum.
func ValidateMnemonic(phrase string) error {
	phrase = NormalizeMnemonic(phrase)
	if phrase == "" || !bip39.IsMnemonicValid(phrase) {
		return ErrInvalidMnemonic
	}
	return nil
}
