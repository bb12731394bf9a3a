package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/tensors-cli/tensors/auth"
	"github.com/tensors-cli/tensors/internal/config"
	"github.com/tensors-cli/tensors/internal/keychain"
	"github.com/tensors-cli/tensors/internal/keys"
	"github.com/tensors-cli/tensors/internal/service"
	"github.com/tensors-cli/tensors/keystore"
	"github.com/tensors-cli/tensors/store"
)

var (
	nameFlag = cli.StringFlag{
		Name:  "name",
		Value: "default",
		Usage: "The wallet name.",
	}
	passwordFlag = cli.StringFlag{
		Name: "password",
		Usage: "The coldkey password. Prefer the prompt; " +
			"a password given here ends up in shell history.",
	}
	useKeychainFlag = cli.BoolFlag{
		Name:  "use-keychain",
		Usage: "Read and store the coldkey password in the macOS keychain.",
	}
	schemeFlag = cli.StringFlag{
		Name:  "scheme",
		Usage: "The keypair scheme, sr25519 or ed25519. Defaults to the configured scheme.",
	}
	overwriteFlag = cli.BoolFlag{
		Name:  "overwrite",
		Usage: "Replace an existing coldkey.",
	}
	checkBreachFlag = cli.BoolFlag{
		Name:  "check-breach",
		Usage: "Reject passwords found in the Have I Been Pwned dataset.",
	}
)

var createColdkeyCommand = cli.Command{
	Name:  "create-coldkey",
	Usage: "Generate a new coldkey and print its mnemonic.",
	Flags: []cli.Flag{
		nameFlag,
		cli.IntFlag{
			Name:  "length",
			Value: 12,
			Usage: "The mnemonic length in words, 12 or 24.",
		},
		passwordFlag,
		useKeychainFlag,
		schemeFlag,
		overwriteFlag,
		checkBreachFlag,
	},
	Action: createColdkey,
}

func createColdkey(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.svc.Close()

	scheme, err := keys.ParseScheme(ctx.String("scheme"))
	if err != nil {
		return err
	}

	name := ctx.String("name")
	password, err := newPassword(ctx, "Enter coldkey password: ")
	if err != nil {
		return err
	}
	defer guard(password).Wipe()

	k, err := env.svc.CreateColdkey(context.Background(), service.CreateRequest{
		Name:      name,
		Words:     ctx.Int("length"),
		Password:  password,
		Scheme:    scheme,
		Overwrite: ctx.Bool("overwrite"),
	})
	if err != nil {
		return err
	}
	defer guardKeystore(k).Wipe()

	w := ctx.App.Writer
	fmt.Fprintf(w, "\nIMPORTANT: store this mnemonic in a secure (preferably offline) place.\n"+
		"Anyone who has it controls your coldkey.\n\n")
	fmt.Fprintf(w, "The mnemonic to the new coldkey is:\n\n%s\n\n", k.SecretPhrase.Reveal())
	fmt.Fprintf(w, "You can restore it with:\ntensors regen-coldkey --name %s --mnemonic \"<mnemonic>\"\n\n", name)
	printPublic(w, name, k)

	return storeInKeychain(ctx, env, name, password)
}

var regenColdkeyCommand = cli.Command{
	Name:  "regen-coldkey",
	Usage: "Restore a coldkey from its mnemonic.",
	Flags: []cli.Flag{
		nameFlag,
		cli.StringFlag{
			Name:  "mnemonic",
			Usage: "The 12 or 24 word mnemonic. Prompted for when omitted.",
		},
		passwordFlag,
		useKeychainFlag,
		schemeFlag,
		overwriteFlag,
		checkBreachFlag,
	},
	Action: regenColdkey,
}

func regenColdkey(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.svc.Close()

	scheme, err := keys.ParseScheme(ctx.String("scheme"))
	if err != nil {
		return err
	}

	var mnemonic *keystore.SecretString
	if ctx.IsSet("mnemonic") {
		mnemonic = keystore.NewSecretString(ctx.String("mnemonic"))
	} else {
		raw, err := readPassword("Enter mnemonic: ")
		if err != nil {
			return fmt.Errorf("read mnemonic: %w", err)
		}
		mnemonic = keystore.NewSecretBytes(raw)
		zeroBytes(raw)
	}
	defer guard(mnemonic).Wipe()

	name := ctx.String("name")
	password, err := newPassword(ctx, "Enter coldkey password: ")
	if err != nil {
		return err
	}
	defer guard(password).Wipe()

	k, err := env.svc.RegenColdkey(context.Background(), service.RegenRequest{
		Name:      name,
		Mnemonic:  mnemonic,
		Password:  password,
		Scheme:    scheme,
		Overwrite: ctx.Bool("overwrite"),
	})
	if err != nil {
		return err
	}
	defer guardKeystore(k).Wipe()

	printPublic(ctx.App.Writer, name, k)
	return storeInKeychain(ctx, env, name, password)
}

var showColdkeyCommand = cli.Command{
	Name:   "show-coldkey",
	Usage:  "Print a wallet's public coldkey. No password is needed.",
	Flags:  []cli.Flag{nameFlag},
	Action: showColdkey,
}

func showColdkey(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.svc.Close()

	name := ctx.String("name")
	k, err := env.svc.ShowColdkeyPub(name)
	if err != nil {
		return err
	}
	printPublic(ctx.App.Writer, name, k)
	return nil
}

var unlockColdkeyCommand = cli.Command{
	Name:   "unlock-coldkey",
	Usage:  "Decrypt a coldkey to check its password.",
	Flags:  []cli.Flag{nameFlag, passwordFlag, useKeychainFlag},
	Action: unlockColdkey,
}

func unlockColdkey(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.svc.Close()

	name := ctx.String("name")
	password, err := existingPassword(ctx, env, name, "Enter coldkey password: ")
	if err != nil {
		return err
	}
	defer guard(password).Wipe()

	k, err := env.svc.UnlockColdkey(name, password)
	if err != nil {
		return err
	}
	defer guardKeystore(k).Wipe()

	fmt.Fprintln(ctx.App.Writer, "Coldkey unlocked.")
	printPublic(ctx.App.Writer, name, k)
	return nil
}

var changePasswordCommand = cli.Command{
	Name:  "change-password",
	Usage: "Re-encrypt a coldkey under a new password.",
	Flags: []cli.Flag{
		nameFlag,
		cli.StringFlag{
			Name:  "new-password",
			Usage: "The new coldkey password. Prompted for when omitted.",
		},
		passwordFlag,
		useKeychainFlag,
		checkBreachFlag,
	},
	Action: changePassword,
}

func changePassword(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.svc.Close()

	name := ctx.String("name")
	oldPassword, err := existingPassword(ctx, env, name, "Enter current password: ")
	if err != nil {
		return err
	}
	defer guard(oldPassword).Wipe()

	var newPw *keystore.SecretString
	if ctx.IsSet("new-password") {
		newPw = keystore.NewSecretString(ctx.String("new-password"))
	} else if newPw, err = promptNewPassword("Enter new password: "); err != nil {
		return err
	}
	defer guard(newPw).Wipe()

	if err := env.svc.ChangePassword(context.Background(), name, oldPassword, newPw); err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "Password changed for wallet %q.\n", name)
	return storeInKeychain(ctx, env, name, newPw)
}

var listCommand = cli.Command{
	Name:   "list",
	Usage:  "List every wallet under the key path.",
	Action: listWallets,
}

func listWallets(ctx *cli.Context) error {
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.svc.Close()

	rows, err := env.svc.List()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(ctx.App.Writer, "No wallets under %s.\n", env.cfg.KeyPath)
		return nil
	}

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSS58 ADDRESS\tSCHEME\tENCRYPTION\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.SS58Address, r.Scheme, r.EncryptionType, r.UpdatedAt)
	}
	return tw.Flush()
}

type cmdEnv struct {
	cfg config.Config
	svc *service.Service
}

// setup resolves configuration, wires package loggers and opens the service.
func setup(ctx *cli.Context) (*cmdEnv, error) {
	// Config loading logs too, so a logger at the flag's level (or info) is
	// installed before the configured level is known.
	bootLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(ctx.GlobalString("log_level")); err == nil && ctx.GlobalIsSet("log_level") {
		bootLevel = lvl
	}
	useLogger(newLogger(ctx.App.ErrWriter, bootLevel))

	cfg, err := config.Load(config.Flags{
		ConfigPath:        ctx.GlobalString("config_path"),
		KeyPath:           ctx.GlobalString("key_path"),
		SubtensorEndpoint: ctx.GlobalString("subtensor_endpoint"),
		LogLevel:          ctx.GlobalString("log_level"),
	})
	if err != nil {
		return nil, err
	}

	lvl, _ := cfg.Level()
	logger := newLogger(ctx.App.ErrWriter, lvl)
	useLogger(logger)

	scheme, _ := keys.ParseScheme(cfg.Scheme)
	opts := service.DefaultOptions()
	opts.SS58Format = cfg.SS58Format
	opts.Scheme = scheme
	opts.Policy.CheckBreached = ctx.Bool("check-breach")

	svc, err := service.New(cfg.KeyPath, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("key_path", cfg.KeyPath).
		Str("config_path", cfg.ConfigPath).
		Str("subtensor_endpoint", cfg.SubtensorEndpoint).
		Msg("configuration loaded")
	return &cmdEnv{cfg: cfg, svc: svc}, nil
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func useLogger(logger zerolog.Logger) {
	config.UseLogger(logger)
	auth.UseLogger(logger)
	keystore.UseLogger(logger)
	service.UseLogger(logger)
}

// newPassword returns the password for a coldkey being written.
func newPassword(ctx *cli.Context, prompt string) (*keystore.SecretString, error) {
	if ctx.IsSet("password") {
		return keystore.NewSecretString(ctx.String("password")), nil
	}
	return promptNewPassword(prompt)
}

// existingPassword returns the password of an existing coldkey from the
// flag, the keychain or a prompt, in that order.
func existingPassword(ctx *cli.Context, env *cmdEnv, name, prompt string) (*keystore.SecretString, error) {
	if ctx.IsSet("password") {
		return keystore.NewSecretString(ctx.String("password")), nil
	}
	if ctx.Bool("use-keychain") {
		paths, err := store.WalletPaths(env.cfg.KeyPath, name)
		if err != nil {
			return nil, err
		}
		pw, err := keychain.Fetch(paths.Dir)
		switch {
		case err == nil:
			defer zeroBytes(pw)
			return keystore.NewSecretBytes(pw), nil
		case errors.Is(err, keychain.ErrUnsupported):
			return nil, userError{msg: "--use-keychain is only supported on macOS", err: err}
		default:
			fmt.Fprintf(ctx.App.ErrWriter, "keychain lookup failed (%v); falling back to prompt\n", err)
		}
	}

	raw, err := readPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer zeroBytes(raw)
	return keystore.NewSecretBytes(raw), nil
}

// storeInKeychain saves password for the wallet when --use-keychain is set.
// Otherwise any password kept for the wallet is now stale and is removed.
func storeInKeychain(ctx *cli.Context, env *cmdEnv, name string, password *keystore.SecretString) error {
	paths, err := store.WalletPaths(env.cfg.KeyPath, name)
	if err != nil {
		return err
	}
	if !ctx.Bool("use-keychain") {
		forgetKeychainPassword(ctx, paths.Dir)
		return nil
	}
	if err := keychain.Store(paths.Dir, password.Expose()); err != nil {
		if errors.Is(err, keychain.ErrUnsupported) {
			return userError{msg: "coldkey saved, but --use-keychain is only supported on macOS", err: err}
		}
		return fmt.Errorf("store password in keychain: %w", err)
	}
	fmt.Fprintln(ctx.App.Writer, "Password stored in keychain.")
	return nil
}

func forgetKeychainPassword(ctx *cli.Context, dir string) {
	if !keychain.Supported() {
		return
	}
	if err := keychain.Delete(dir); err != nil {
		fmt.Fprintf(ctx.App.ErrWriter, "could not remove stale keychain password: %v\n", err)
	}
}

func printPublic(w io.Writer, name string, k *keystore.Keystore) {
	fmt.Fprintf(w, "wallet:      %s\n", name)
	fmt.Fprintf(w, "ss58Address: %s\n", k.SS58Address)
	fmt.Fprintf(w, "publicKey:   %s\n", k.PublicKey)
}
