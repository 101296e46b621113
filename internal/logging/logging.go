// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel overrides every other level setting when set.
const EnvLevel = "TTSYNC_LOG_LEVEL"

// New returns a console logger writing to w.
func New(w io.Writer, level zerolog.Level, color bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "ttsync").Logger()
}

// Level picks the log level: the environment override wins, then a
// non-zero -v count (1 = debug, 2+ = trace), then the configured name.
func Level(verbosity int, configured string) (zerolog.Level, error) {
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		return parse(env)
	}
	switch {
	case verbosity == 1:
		return zerolog.DebugLevel, nil
	case verbosity >= 2:
		return zerolog.TraceLevel, nil
	}
	if configured == "" {
		return zerolog.InfoLevel, nil
	}
	return parse(configured)
}

func parse(name string) (zerolog.Level, error) {
	l, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return l, nil
}
