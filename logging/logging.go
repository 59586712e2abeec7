package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// Get returns the process-wide logger. The logger itself carries no level
// filter; filtering happens through the zerolog global level, so copies
// captured at package init still react to SetVerbose.
func Get() zerolog.Logger {
	once.Do(func() {
		logLevel := zerolog.InfoLevel
		if os.Getenv("CSLB_DEBUG") != "" {
			logLevel = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(logLevel)

		console := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}

		logger = zerolog.New(console).With().Timestamp().Logger()
	})

	return logger
}

// SetVerbose lowers the global level to debug, for the --verbose flag
// which is parsed after the first Get call.
func SetVerbose() {
	Get()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}
