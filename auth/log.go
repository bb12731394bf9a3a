package auth

import "github.com/rs/zerolog"

var log = zerolog.Nop()

// DisableLog silences the package logger.
func DisableLog() {
	log = zerolog.Nop()
}

// UseLogger routes package logging through logger.
func UseLogger(logger zerolog.Logger) {
	log = logger.With().Str("subsystem", "auth").Logger()
}
