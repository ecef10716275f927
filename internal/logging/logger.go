// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

// Init sets the global logger. Logs go to stderr so stdout stays free for
// the run summary.
func Init(cfg Config) {
	InitTo(os.Stderr, cfg)
}

func InitTo(w io.Writer, cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRecording tags log lines with the candidate transcript being
// processed.
func WithRecording(component, candidate string) zerolog.Logger {
	l := WithComponent(component)
	return l.With().Str("candidate", candidate).Logger()
}
