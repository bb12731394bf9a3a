package keystore

import "github.com/rs/zerolog"

// log is disabled by default until UseLogger is called.
var log = zerolog.Nop()

// DisableLog disables all library log output.
func DisableLog() {
	log = zerolog.Nop()
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger zerolog.Logger) {
	log = logger.With().Str("subsystem", "keystore").Logger()
}
