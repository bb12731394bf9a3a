//go:build !darwin

package keychain

// Supported reports whether this build can reach a keychain.
func Supported() bool { return false }

// Store is unavailable on non-macOS platforms.
func Store(dir string, password []byte) error {
	return ErrUnsupported
}

// Fetch is unavailable on non-macOS platforms.
func Fetch(dir string) ([]byte, error) {
	return nil, ErrUnsupported
}

// Delete is unavailable on non-macOS platforms.
func Delete(dir string) error {
	return ErrUnsupported
}
