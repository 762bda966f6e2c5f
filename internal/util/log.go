// Package util holds small process-wide helpers shared by the agents.
package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. Pretty output is meant for a terminal; the
// default is one JSON object per line on stdout.
func NewLogger(level string, pretty bool) zerolog.Logger {
	return newLogger(os.Stdout, level, pretty)
}

func newLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// AgentLogger tags every line with the agent's short tag and strategy name.
func AgentLogger(root zerolog.Logger, tag, strategy string) zerolog.Logger {
	return root.With().Str("agent", tag).Str("strategy", strategy).Logger()
}
