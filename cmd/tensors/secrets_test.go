package main

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"github.com/tensors-cli/tensors/internal/keychain"
	"github.com/tensors-cli/tensors/keystore"
)

func TestWipeGuardedZeroesLiveSecrets(t *testing.T) {
	password := guard(keystore.NewSecretString("hunter2"))
	k, err := keystore.New("default", keystore.Fields{
		AccountID:    "0x01",
		PublicKey:    "0x01",
		SS58Address:  "5x",
		SecretPhrase: keystore.NewSecretString("banana consider excuse"),
		SecretSeed:   keystore.NewSecretString("0xee88"),
	}, keystore.NewSecretString("hunter2"))
	require.NoError(t, err)
	guardKeystore(k)
	require.Nil(t, guard(nil))

	pwBuf := password.Expose()
	phraseBuf := k.SecretPhrase.Expose()
	wipeGuarded()

	require.True(t, password.Empty())
	require.False(t, k.HasSecrets())
	require.True(t, k.Password.Empty())
	for _, b := range append(pwBuf, phraseBuf...) {
		require.Zero(t, b)
	}

	live.Lock()
	require.Empty(t, live.secrets)
	live.Unlock()
}

func TestForgetKeychainPasswordIsQuietWithoutEntry(t *testing.T) {
	var stderr bytes.Buffer
	app := cli.NewApp()
	app.ErrWriter = &stderr
	ctx := cli.NewContext(app, flag.NewFlagSet("tensors", flag.ContinueOnError), nil)

	// Nothing is stored for a fresh directory, so there is nothing to report
	// whether or not the platform has a keychain.
	forgetKeychainPassword(ctx, t.TempDir())
	require.Empty(t, stderr.String())
	if !keychain.Supported() {
		require.ErrorIs(t, keychain.Delete(t.TempDir()), keychain.ErrUnsupported)
	}
}
