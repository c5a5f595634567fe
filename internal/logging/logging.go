// Package logging centralizes mcgravity's zerolog setup so every component
// gets a consistently-shaped, component-scoped logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger's time format and level. Call
// once from main before constructing any component logger.
func Init(level string) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(parsed)
	return nil
}

// Component returns a logger tagged with a "component" field, the pattern
// used throughout mcgravity for per-subsystem logging.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
