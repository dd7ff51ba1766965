package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger and sets the global level. Components hang
// their own child loggers off the returned instance.
//
// format "pretty" renders human-readable console output for development;
// anything else emits JSON lines. Unknown levels fall back to info.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log := zerolog.New(os.Stdout)
	if format == "pretty" {
		log = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	return log.With().Timestamp().Caller().Logger()
}
