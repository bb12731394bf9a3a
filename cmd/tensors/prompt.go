package main

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/tensors-cli/tensors/keystore"
)

// readPassword reads a line from the terminal without echo. Tests replace it.
var readPassword = func(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, userError{msg: "stdin is not a terminal; pass --password instead"}
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// promptNewPassword asks for a password twice and requires both to match.
func promptNewPassword(prompt string) (*keystore.SecretString, error) {
	pw, err := readPassword(prompt)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer zeroBytes(pw)

	confirm, err := readPassword("Retype password: ")
	if err != nil {
		return nil, fmt.Errorf("read confirmation password: %w", err)
	}
	defer zeroBytes(confirm)

	if !bytes.Equal(pw, confirm) {
		return nil, userError{msg: "passwords do not match"}
	}
	if len(pw) == 0 {
		return nil, userError{msg: "password cannot be empty"}
	}
	return keystore.NewSecretBytes(pw), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
