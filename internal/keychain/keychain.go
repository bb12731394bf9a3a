// Package keychain keeps coldkey passwords in the operating system keychain.
//
// Each wallet directory maps to one keychain account equal to the directory's
// absolute, symlink-resolved path. Only macOS is supported; elsewhere every
// call returns ErrUnsupported.
package keychain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	service = "ai.opentensor.tensors.coldkey"
	label   = "tensors coldkey password"
)

var (
	// ErrUnsupported signals that no keychain is available on this platform.
	ErrUnsupported = errors.New("keychain not supported on this platform")
	// ErrNotFound reports that no password is stored for the wallet.
	ErrNotFound = errors.New("no keychain password for wallet")
)

// accountForDirectory canonicalises a wallet directory into a keychain
// account. The directory must exist.
func accountForDirectory(directory string) (string, error) {
	directory = strings.TrimSpace(directory)
	if directory == "" {
		return "", errors.New("wallet directory is required")
	}

	absolutePath, err := filepath.Abs(directory)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}

	info, err := os.Stat(absolutePath)
	if err != nil {
		return "", fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", absolutePath)
	}

	if resolved, err := filepath.EvalSymlinks(absolutePath); err == nil && resolved != "" {
		absolutePath = resolved
	}

	return absolutePath, nil
}
