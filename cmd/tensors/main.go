package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/urfave/cli"

	"github.com/tensors-cli/tensors/auth"
	"github.com/tensors-cli/tensors/internal/config"
	"github.com/tensors-cli/tensors/internal/keys"
	"github.com/tensors-cli/tensors/internal/service"
	"github.com/tensors-cli/tensors/keystore"
	"github.com/tensors-cli/tensors/krypto"
	"github.com/tensors-cli/tensors/store"
)

const cliVersion = "0.1.0"

// userError is shown to the user verbatim and exits with status 1.
type userError struct {
	msg string
	err error
}

func (e userError) Error() string { return e.msg }
func (e userError) Unwrap() error { return e.err }

func main() {
	// Zero the passwords and keys in flight, then exit, on Ctrl-C or SIGTERM.
	memguard.CatchSignal(func(os.Signal) { wipeGuarded() }, os.Interrupt, syscall.SIGTERM)
	defer memguard.Purge()

	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		memguard.SafeExit(handleError(os.Stderr, err))
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "tensors"
	app.Version = cliVersion
	app.Usage = "manage bittensor coldkeys"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name: "config_path",
			Usage: "The path to the tensors config file " +
				"(default " + config.DefaultConfigPath + ", or $TENSORS_CONFIG_PATH).",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:      "key_path",
			Usage:     "The directory holding every wallet.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:  "subtensor_endpoint",
			Usage: "The subtensor websocket endpoint.",
		},
		cli.StringFlag{
			Name:  "log_level",
			Usage: "Logging level: trace, debug, info, warn or error.",
		},
	}
	app.Commands = []cli.Command{
		createColdkeyCommand,
		regenColdkeyCommand,
		showColdkeyCommand,
		unlockColdkeyCommand,
		changePasswordCommand,
		listCommand,
	}
	return app
}

// handleError prints err and returns the process exit status.
func handleError(w io.Writer, err error) int {
	var uerr userError
	switch {
	case errors.As(err, &uerr):
		fmt.Fprintln(w, uerr.Error())
		return 1
	case errors.Is(err, krypto.ErrAuthenticationFailed):
		fmt.Fprintln(w, "wrong password or corrupted keyfile")
		return 1
	case errors.Is(err, krypto.ErrMalformedEnvelope),
		errors.Is(err, krypto.ErrUnsupportedEncryptionType),
		errors.Is(err, keystore.ErrDeserialization):
		fmt.Fprintf(w, "unreadable keyfile: %v\n", err)
		return 1
	case errors.Is(err, service.ErrWalletExists):
		fmt.Fprintf(w, "%v; pass --overwrite to replace it\n", err)
		return 1
	case errors.Is(err, service.ErrWalletNotFound),
		errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, keys.ErrWordCount),
		errors.Is(err, keys.ErrInvalidMnemonic),
		errors.Is(err, keys.ErrUnknownScheme),
		errors.Is(err, config.ErrInvalidConfig):
		fmt.Fprintln(w, err)
		return 1
	default:
		fmt.Fprintf(w, "[tensors] unexpected error: %v\n", err)
		return 2
	}
}
