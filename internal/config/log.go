package config

import "github.com/rs/zerolog"

var log = zerolog.Nop()

// UseLogger routes package logging through logger.
func UseLogger(logger zerolog.Logger) {
	log = logger.With().Str("subsystem", "config").Logger()
}
