package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears every TENSORS_ variable.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, name := range []string{"CONFIG_PATH", "KEY_PATH", "SUBTENSOR_ENDPOINT", "SS58_FORMAT", "SCHEME", "LOG_LEVEL"} {
		t.Setenv(EnvPrefix+name, "")
		os.Unsetenv(EnvPrefix + name)
	}
	return home
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".bittensor", "tensors.toml"), cfg.ConfigPath)
	require.Equal(t, filepath.Join(home, ".bittensor"), cfg.KeyPath)
	require.Equal(t, DefaultSubtensorEndpoint, cfg.SubtensorEndpoint)
	require.EqualValues(t, 42, cfg.SS58Format)
	require.Equal(t, "sr25519", cfg.Scheme)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, zerolog.InfoLevel, lvl)
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)

	writeConfig(t, filepath.Join(home, ".bittensor", "tensors.toml"), `
config_path = "/somewhere/else.toml"
key_path = "/from/file"
subtensor_endpoint = "ws://file:9944"
ss58_format = 0
scheme = "ed25519"
log_level = "warn"
`)

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	// The file cannot move itself.
	require.Equal(t, filepath.Join(home, ".bittensor", "tensors.toml"), cfg.ConfigPath)
	require.Equal(t, "/from/file", cfg.KeyPath)
	require.Equal(t, "ws://file:9944", cfg.SubtensorEndpoint)
	require.EqualValues(t, 0, cfg.SS58Format)
	require.Equal(t, "ed25519", cfg.Scheme)
	require.Equal(t, "warn", cfg.LogLevel)

	t.Setenv("TENSORS_KEY_PATH", "~/from-env")
	t.Setenv("TENSORS_SUBTENSOR_ENDPOINT", "ws://env:9944")
	t.Setenv("TENSORS_SS58_FORMAT", "1000")

	cfg, err = Load(Flags{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "from-env"), cfg.KeyPath)
	require.Equal(t, "ws://env:9944", cfg.SubtensorEndpoint)
	require.EqualValues(t, 1000, cfg.SS58Format)

	cfg, err = Load(Flags{KeyPath: "/from/flag", LogLevel: "debug"})
	require.NoError(t, err)
	require.Equal(t, "/from/flag", cfg.KeyPath)
	require.Equal(t, "ws://env:9944", cfg.SubtensorEndpoint)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigPathOverride(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "custom.toml")
	writeConfig(t, path, `key_path = "/custom"`)

	cfg, err := Load(Flags{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, path, cfg.ConfigPath)
	require.Equal(t, "/custom", cfg.KeyPath)

	t.Setenv("TENSORS_CONFIG_PATH", path)
	cfg, err = Load(Flags{})
	require.NoError(t, err)
	require.Equal(t, "/custom", cfg.KeyPath)
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad toml", file: `key_path = `},
		{name: "bad scheme", file: `scheme = "ecdsa"`},
		{name: "bad level", file: `log_level = "loud"`},
		{name: "ss58 range", file: `ss58_format = 20000`},
		{name: "env ss58", env: map[string]string{"TENSORS_SS58_FORMAT": "forty-two"}},
		{name: "empty key path", env: map[string]string{"TENSORS_KEY_PATH": ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "tensors.toml")
			writeConfig(t, path, tc.file)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load(Flags{ConfigPath: path})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)

	for in, want := range map[string]string{
		"~":            home,
		"~/.bittensor": filepath.Join(home, ".bittensor"),
		"/abs/path":    "/abs/path",
		"rel/path":     "rel/path",
		"~other/x":     "~other/x",
	} {
		got, err := ExpandHome(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
}
