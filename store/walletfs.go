package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// ColdkeyFilename holds the encrypted "$NACL" envelope.
	ColdkeyFilename = "coldkey"
	// ColdkeyPubFilename holds the public-only JSON record.
	ColdkeyPubFilename = "coldkeypub.txt"
)

// ErrInvalidName reports a wallet name that cannot be used as a directory name.
var ErrInvalidName = errors.New("invalid wallet name")

// Paths locates wallet artifacts on disk.
type Paths struct {
	Dir string
}

// WalletPaths returns the Paths of wallet name under the key directory root.
func WalletPaths(root, name string) (Paths, error) {
	if err := ValidateName(name); err != nil {
		return Paths{}, err
	}
	if root == "" {
		return Paths{}, errors.New("key path not specified")
	}
	return Paths{Dir: filepath.Join(root, name)}, nil
}

// ValidateName rejects names that are empty or would escape the key directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ColdkeyPath resolves the encrypted coldkey path.
func (p Paths) ColdkeyPath() string {
	return filepath.Join(p.Dir, ColdkeyFilename)
}

// ColdkeyPubPath resolves the public coldkey path.
func (p Paths) ColdkeyPubPath() string {
	return filepath.Join(p.Dir, ColdkeyPubFilename)
}

// Exists reports whether the wallet has an encrypted coldkey on disk.
func (p Paths) Exists() bool {
	_, err := os.Stat(p.ColdkeyPath())
	return err == nil
}

// EnsureDir creates the wallet directory with owner-only permissions.
func (p Paths) EnsureDir() error {
	if p.Dir == "" {
		return errors.New("wallet directory not specified")
	}
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("create wallet directory: %w", err)
	}
	return nil
}

// ReadFile reads a keyfile.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFileAtomic replaces path with data. The temporary file is restricted
// to 0600 before anything is written to it and is renamed over path only
// once it is fully synced. The directory is synced after the rename, so a
// crash never leaves a truncated or missing keyfile.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := chmod0600(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync directory: %w", err)
	}

	return EnsurePerm0600(path)
}

// syncDir flushes the directory entry so a completed rename survives a
// crash. Windows cannot open directories for syncing.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

func chmod0600(f *os.File) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return f.Chmod(0o600)
}

// EnsurePerm0600 sets owner read/write only on Unix systems.
func EnsurePerm0600(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	return nil
}
