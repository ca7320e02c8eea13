package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger for human-readable console output.
func Init(ginMode string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	level := zerolog.DebugLevel
	if ginMode == "release" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
