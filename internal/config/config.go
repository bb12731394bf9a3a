// Package config resolves tensors settings from defaults, a TOML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/tensors-cli/tensors/internal/keys"
)

const (
	DefaultConfigPath        = "~/.bittensor/tensors.toml"
	DefaultKeyPath           = "~/.bittensor"
	DefaultSubtensorEndpoint = "wss://entrypoint-finney.opentensor.ai:443"
	DefaultLogLevel          = "info"

	// EnvPrefix namespaces every environment override.
	EnvPrefix = "TENSORS_"
)

// ErrInvalidConfig wraps every configuration failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved tensors configuration.
type Config struct {
	ConfigPath        string `toml:"config_path"`
	KeyPath           string `toml:"key_path"`
	SubtensorEndpoint string `toml:"subtensor_endpoint"`
	SS58Format        uint16 `toml:"ss58_format"`
	Scheme            string `toml:"scheme"`
	LogLevel          string `toml:"log_level"`
}

// Flags carries command-line overrides. Empty fields are unset.
type Flags struct {
	ConfigPath        string
	KeyPath           string
	SubtensorEndpoint string
	LogLevel          string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ConfigPath:        DefaultConfigPath,
		KeyPath:           DefaultKeyPath,
		SubtensorEndpoint: DefaultSubtensorEndpoint,
		SS58Format:        keys.DefaultSS58Format,
		Scheme:            string(keys.DefaultScheme),
		LogLevel:          DefaultLogLevel,
	}
}

// Load resolves the configuration. A missing config file is not an error.
func Load(flags Flags) (Config, error) {
	cfg := Default()

	// The file location itself comes only from the environment or flags.
	if v, ok := os.LookupEnv(EnvPrefix + "CONFIG_PATH"); ok && v != "" {
		cfg.ConfigPath = v
	}
	if flags.ConfigPath != "" {
		cfg.ConfigPath = flags.ConfigPath
	}
	configPath, err := ExpandHome(cfg.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.mergeFile(configPath); err != nil {
		return Config{}, err
	}
	cfg.ConfigPath = configPath

	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	cfg.mergeFlags(flags)

	if cfg.KeyPath, err = ExpandHome(cfg.KeyPath); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warn().Str("path", path).Stringer("key", key).Msg("unknown config key")
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v, ok := os.LookupEnv(EnvPrefix + "KEY_PATH"); ok {
		c.KeyPath = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SUBTENSOR_ENDPOINT"); ok {
		c.SubtensorEndpoint = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SCHEME"); ok {
		c.Scheme = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SS58_FORMAT"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return fmt.Errorf("%w: %sSS58_FORMAT: %w", ErrInvalidConfig, EnvPrefix, err)
		}
		c.SS58Format = uint16(n)
	}
	return nil
}

func (c *Config) mergeFlags(f Flags) {
	if f.KeyPath != "" {
		c.KeyPath = f.KeyPath
	}
	if f.SubtensorEndpoint != "" {
		c.SubtensorEndpoint = f.SubtensorEndpoint
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
}

// Validate checks every field that has a closed set of values.
func (c Config) Validate() error {
	if c.KeyPath == "" {
		return fmt.Errorf("%w: key_path is empty", ErrInvalidConfig)
	}
	if _, err := keys.ParseScheme(c.Scheme); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.SS58Format > 16383 {
		return fmt.Errorf("%w: ss58_format %d out of range", ErrInvalidConfig, c.SS58Format)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return lvl, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve home directory: %w", ErrInvalidConfig, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
