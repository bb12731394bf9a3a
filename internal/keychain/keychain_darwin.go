//go:build darwin

package keychain

import (
	"errors"
	"fmt"

	keychain "github.com/keybase/go-keychain"
)

// Supported reports whether this build can reach a keychain.
func Supported() bool { return true }

// Store saves password for the wallet at dir, replacing any previous value.
// The item never syncs to iCloud and is readable only while the device is
// unlocked.
func Store(dir string, password []byte) error {
	account, err := accountForDirectory(dir)
	if err != nil {
		return err
	}

	item := keychain.NewGenericPassword(service, account, label, password, "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := keychain.AddItem(item); err != nil {
		if !errors.Is(err, keychain.ErrorDuplicateItem) {
			return fmt.Errorf("add password to keychain: %w", err)
		}
		query := keychain.NewGenericPassword(service, account, "", nil, "")
		update := keychain.NewItem()
		update.SetData(password)
		if err := keychain.UpdateItem(query, update); err != nil {
			return fmt.Errorf("update keychain password: %w", err)
		}
	}
	return nil
}

// Fetch returns the password stored for the wallet at dir, or ErrNotFound.
func Fetch(dir string) ([]byte, error) {
	account, err := accountForDirectory(dir)
	if err != nil {
		return nil, err
	}
	data, err := keychain.GetGenericPassword(service, account, "", "")
	if err != nil {
		return nil, fmt.Errorf("read keychain password: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// Delete removes the password stored for the wallet at dir. A missing item
// is not an error.
func Delete(dir string) error {
	account, err := accountForDirectory(dir)
	if err != nil {
		return err
	}
	query := keychain.NewGenericPassword(service, account, "", nil, "")
	if err := keychain.DeleteItem(query); err != nil && !errors.Is(err, keychain.ErrorItemNotFound) {
		return fmt.Errorf("remove password from keychain: %w", err)
	}
	return nil
}
