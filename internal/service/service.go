package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tensors-cli/tensors/auth"
	"github.com/tensors-cli/tensors/internal/db"
	"github.com/tensors-cli/tensors/internal/keys"
	"github.com/tensors-cli/tensors/keystore"
	"github.com/tensors-cli/tensors/krypto"
	"github.com/tensors-cli/tensors/store"
)

var (
	// ErrWalletExists reports a create or regen over an existing coldkey
	// without Overwrite.
	ErrWalletExists = errors.New("coldkey already exists")
	// ErrWalletNotFound reports a wallet with no coldkey files on disk.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrPasswordRequired reports an operation that needs a password but got none.
	ErrPasswordRequired = errors.New("password is required")
)

// Options configure a Service.
type Options struct {
	SS58Format uint16
	Scheme     keys.Scheme
	Policy     auth.ValidateOptions
}

// DefaultOptions returns the network defaults and the default password policy.
func DefaultOptions() Options {
	return Options{
		SS58Format: keys.DefaultSS58Format,
		Scheme:     keys.DefaultScheme,
		Policy:     auth.DefaultValidateOptions(),
	}
}

// Service exposes high-level coldkey operations for the CLI.
type Service struct {
	keyPath string
	db      *db.DB
	opts    Options
}

// New returns a service bound to keyPath, where wallet directories and the
// wallets.db registry live.
func New(keyPath string, opts Options) (*Service, error) {
	if keyPath == "" {
		return nil, errors.New("key path is required")
	}
	if err := os.MkdirAll(keyPath, 0o700); err != nil {
		return nil, fmt.Errorf("create key path: %w", err)
	}

	dbPath := filepath.Join(keyPath, db.Filename)
	handle, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry (%s): %w", dbPath, err)
	}
	if err := db.Migrate(handle); err != nil {
		db.Close(handle)
		return nil, err
	}

	if opts.Scheme == "" {
		opts.Scheme = keys.DefaultScheme
	}
	log.Debug().Str("registry", handle.Path()).Msg("wallet registry ready")
	return &Service{keyPath: keyPath, db: handle, opts: opts}, nil
}

// Close releases the registry handle.
func (s *Service) Close() error {
	return db.Close(s.db)
}

// KeyPath returns the directory holding every wallet.
func (s *Service) KeyPath() string { return s.keyPath }

// CreateRequest describes a new coldkey.
type CreateRequest struct {
	Name      string
	Words     int
	Password  *keystore.SecretString
	Scheme    keys.Scheme
	Overwrite bool
}

// CreateColdkey generates a mnemonic and writes the wallet's encrypted and
// public keyfiles. The returned record still carries the phrase so it can be
// shown once; callers must Wipe it.
func (s *Service) CreateColdkey(ctx context.Context, req CreateRequest) (*keystore.Keystore, error) {
	phrase, err := keys.NewMnemonic(req.Words)
	if err != nil {
		return nil, err
	}
	secret := keystore.NewSecretString(phrase)
	defer secret.Wipe()

	return s.writeColdkey(ctx, req.Name, secret.Expose(), req.Scheme, req.Password, req.Overwrite)
}

// RegenRequest describes a coldkey restored from an existing mnemonic.
type RegenRequest struct {
	Name      string
	Mnemonic  *keystore.SecretString
	Password  *keystore.SecretString
	Scheme    keys.Scheme
	Overwrite bool
}

// RegenColdkey rebuilds a coldkey from its mnemonic.
func (s *Service) RegenColdkey(ctx context.Context, req RegenRequest) (*keystore.Keystore, error) {
	if req.Mnemonic.Empty() {
		return nil, keys.ErrInvalidMnemonic
	}
	return s.writeColdkey(ctx, req.Name, req.Mnemonic.Expose(), req.Scheme, req.Password, req.Overwrite)
}

func (s *Service) writeColdkey(
	ctx context.Context,
	name string,
	phrase []byte,
	scheme keys.Scheme,
	password *keystore.SecretString,
	overwrite bool,
) (*keystore.Keystore, error) {
	paths, err := store.WalletPaths(s.keyPath, name)
	if err != nil {
		return nil, err
	}
	existed := paths.Exists()
	if existed && !overwrite {
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, paths.ColdkeyPath())
	}
	if password.Empty() {
		return nil, ErrPasswordRequired
	}
	if err := s.validatePassword(ctx, name, password); err != nil {
		return nil, err
	}
	if scheme == "" {
		scheme = s.opts.Scheme
	}

	pair, err := keys.FromPhrase(string(phrase), scheme, s.opts.SS58Format)
	if err != nil {
		return nil, err
	}
	defer pair.Wipe()

	phraseCopy := pair.Phrase()
	seedHex := pair.SeedHex()
	k, err := keystore.New(name, keystore.Fields{
		AccountID:    pair.AccountID(),
		PublicKey:    pair.PublicKeyHex(),
		SS58Address:  pair.SS58Address,
		SecretPhrase: keystore.NewSecretBytes(phraseCopy),
		SecretSeed:   keystore.NewSecretBytes(seedHex),
	}, keystore.NewSecretBytes(password.Expose()))
	wipe(phraseCopy)
	wipe(seedHex)
	if err != nil {
		return nil, err
	}

	if err := paths.EnsureDir(); err != nil {
		k.Wipe()
		return nil, err
	}
	if err := k.SaveEncrypted(paths.Dir); err != nil {
		k.Wipe()
		return nil, err
	}
	if err := k.SavePublicOnly(paths.Dir); err != nil {
		k.Wipe()
		// A coldkey without its public file would block a retry.
		if !existed {
			if rmErr := os.Remove(paths.ColdkeyPath()); rmErr != nil {
				log.Warn().Err(rmErr).Str("wallet", name).Msg("could not roll back coldkey")
			}
		}
		return nil, err
	}

	s.register(k, scheme, krypto.EncryptionNacl)
	log.Info().
		Str("wallet", name).
		Str("ss58", k.SS58Address).
		Str("scheme", string(scheme)).
		Msg("coldkey written")
	return k, nil
}

// UnlockColdkey decrypts the wallet's coldkey. Callers must Wipe the result.
func (s *Service) UnlockColdkey(name string, password *keystore.SecretString) (*keystore.Keystore, error) {
	paths, err := s.existingWallet(name)
	if err != nil {
		return nil, err
	}

	k, err := keystore.LoadEncrypted(paths.ColdkeyPath(), password)
	if err != nil {
		return nil, err
	}
	k.Name = name

	if pub, err := keystore.LoadPublic(paths.Dir); err == nil && pub.SS58Address != k.SS58Address {
		log.Warn().
			Str("wallet", name).
			Str("coldkey", k.SS58Address).
			Str("coldkeypub", pub.SS58Address).
			Msg("public keyfile does not match coldkey")
	}
	return k, nil
}

// ChangePassword re-encrypts the wallet's coldkey under newPassword.
func (s *Service) ChangePassword(ctx context.Context, name string, oldPassword, newPassword *keystore.SecretString) error {
	if newPassword.Empty() {
		return ErrPasswordRequired
	}

	if err := s.validatePassword(ctx, name, newPassword); err != nil {
		return err
	}

	k, err := s.UnlockColdkey(name, oldPassword)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	defer k.Wipe()

	k.Password.Wipe()
	k.Password = keystore.NewSecretBytes(newPassword.Expose())

	paths, _ := store.WalletPaths(s.keyPath, name)
	if err := k.SaveEncrypted(paths.Dir); err != nil {
		return err
	}

	scheme := keys.Scheme("")
	if row, err := db.GetWallet(s.db, name); err == nil {
		scheme = keys.Scheme(row.Scheme)
	}
	s.register(k, scheme, krypto.EncryptionNacl)
	log.Info().Str("wallet", name).Msg("coldkey password changed")
	return nil
}

// ShowColdkeyPub returns the wallet's public record.
func (s *Service) ShowColdkeyPub(name string) (*keystore.Keystore, error) {
	paths, err := store.WalletPaths(s.keyPath, name)
	if err != nil {
		return nil, err
	}
	k, err := keystore.LoadPublic(paths.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
		}
		return nil, err
	}
	k.Name = name
	return k, nil
}

// List reconciles the registry with the key path and returns every wallet.
// Wallet directories are the source of truth: missing rows are added from
// coldkeypub.txt, and rows whose directory is gone are dropped.
func (s *Service) List() ([]db.WalletRow, error) {
	entries, err := os.ReadDir(s.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key path: %w", err)
	}

	onDisk := make(map[string]bool)
	for _, e := range entries {
		if !e.IsDir() || store.ValidateName(e.Name()) != nil {
			continue
		}
		paths := store.Paths{Dir: filepath.Join(s.keyPath, e.Name())}
		if _, err := os.Stat(paths.ColdkeyPubPath()); err != nil {
			continue
		}
		onDisk[e.Name()] = true

		if _, err := db.GetWallet(s.db, e.Name()); !errors.Is(err, sql.ErrNoRows) {
			continue
		}
		pub, err := keystore.LoadPublic(paths.Dir)
		if err != nil {
			log.Warn().Err(err).Str("wallet", e.Name()).Msg("skipping unreadable wallet")
			continue
		}
		pub.Name = e.Name()
		s.register(pub, "", detectEncryption(paths))
	}

	rows, err := db.ListWallets(s.db)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, row := range rows {
		if onDisk[row.Name] {
			out = append(out, row)
			continue
		}
		if err := db.DeleteWallet(s.db, row.Name); err != nil && !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("wallet", row.Name).Msg("drop stale registry row")
		}
	}
	return out, nil
}

func (s *Service) existingWallet(name string) (store.Paths, error) {
	paths, err := store.WalletPaths(s.keyPath, name)
	if err != nil {
		return store.Paths{}, err
	}
	if !paths.Exists() {
		return store.Paths{}, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
	}
	return paths, nil
}

func (s *Service) validatePassword(ctx context.Context, name string, password *keystore.SecretString) error {
	opts := s.opts.Policy
	opts.UserInputs = append(append([]string(nil), opts.UserInputs...), name)
	return auth.ValidatePassword(ctx, password.Expose(), opts)
}

// register records public wallet metadata. The registry is an index, so a
// failure here is logged and never fails the keyfile operation.
func (s *Service) register(k *keystore.Keystore, scheme keys.Scheme, typ krypto.EncryptionType) {
	row := db.WalletRow{
		Name:           k.Name,
		SS58Address:    k.SS58Address,
		PublicKey:      k.PublicKey,
		Scheme:         string(scheme),
		EncryptionType: typ.String(),
	}
	if row.Scheme == "" {
		row.Scheme = "unknown"
	}
	if err := db.UpsertWallet(s.db, row); err != nil {
		log.Warn().Err(err).Str("wallet", k.Name).Msg("update wallet registry")
	}
}

func detectEncryption(paths store.Paths) krypto.EncryptionType {
	data, err := store.ReadFile(paths.ColdkeyPath())
	if err != nil {
		return krypto.EncryptionUnknown
	}
	return krypto.DetectEncryptionType(data)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
